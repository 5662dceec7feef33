package reviews

import "errors"

var (
	ErrReviewNotFound  = errors.New("review not found")
	ErrTourNotFound    = errors.New("tour not found")
	ErrAlreadyReviewed = errors.New("you have already reviewed this tour")
	ErrNotOwner        = errors.New("you can only change your own reviews")
	ErrMissingTour     = errors.New("a review must belong to a tour")
	ErrEmptyUpdate     = errors.New("no fields to update")
)
