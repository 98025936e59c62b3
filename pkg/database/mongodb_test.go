package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "configured", DatabaseName("configured", "from_uri"))
	assert.Equal(t, "from_uri", DatabaseName("", "from_uri"))
	assert.Equal(t, defaultDatabase, DatabaseName("", ""))
}

func hasUniqueIndex(t *testing.T, collection string, keys ...string) bool {
	t.Helper()
	for _, model := range IndexPlan()[collection] {
		d, ok := model.Keys.(bson.D)
		require.True(t, ok)
		if len(d) != len(keys) {
			continue
		}
		match := true
		for i, k := range keys {
			if d[i].Key != k {
				match = false
			}
		}
		if match && model.Options != nil && model.Options.Unique != nil && *model.Options.Unique {
			return true
		}
	}
	return false
}

func TestIndexPlanUniqueness(t *testing.T) {
	assert.True(t, hasUniqueIndex(t, CollectionAlerts, "alert_id"))
	assert.True(t, hasUniqueIndex(t, CollectionRescueRequests, "request_number"))
	assert.True(t, hasUniqueIndex(t, CollectionAcknowledgments, "alert_id", "user_id"))
	assert.True(t, hasUniqueIndex(t, CollectionUsers, "email"))
	assert.False(t, hasUniqueIndex(t, CollectionDeliveries, "alert_id", "channel"))
}

func TestIndexPlanGeoIndexes(t *testing.T) {
	geo := map[string]string{
		CollectionUsers:          "location",
		CollectionRescueRequests: "location",
		CollectionAlerts:         "target_area.radius.center",
	}
	for collection, field := range geo {
		found := false
		for _, model := range IndexPlan()[collection] {
			for _, e := range model.Keys.(bson.D) {
				if e.Key == field && e.Value == "2dsphere" {
					found = true
				}
			}
		}
		assert.True(t, found, "%s.%s should carry a 2dsphere index", collection, field)
	}
}
