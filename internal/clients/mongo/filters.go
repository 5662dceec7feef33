package mongo

import "go.mongodb.org/mongo-driver/v2/bson"

// Default read filters. Every query of the matching collection merges one
// of these so hidden documents are excluded at the call site.
var (
	// activeUsers hides deactivated accounts.
	activeUsers = bson.M{"active": bson.M{"$ne": false}}
	// publicTours hides secret tours.
	publicTours = bson.M{"secret_tour": bson.M{"$ne": true}}
)

// withDefault returns filter with the default filter's keys added.
func withDefault(def, filter bson.M) bson.M {
	out := make(bson.M, len(def)+len(filter))
	for k, v := range filter {
		out[k] = v
	}
	for k, v := range def {
		out[k] = v
	}
	return out
}
