package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestIndexes_UniqueBusinessKeys(t *testing.T) {
	indexes := Indexes()

	uniqueFields := map[string]string{
		"drivers":  "driver_number",
		"vehicles": "vehicle_number",
		"managers": "username",
		"trips":    "temporary_username",
	}
	for collection, field := range uniqueFields {
		models, ok := indexes[collection]
		require.True(t, ok, collection)

		found := false
		for _, m := range models {
			keys := m.Keys.(bson.D)
			if len(keys) == 1 && keys[0].Key == field {
				require.NotNil(t, m.Options)
				require.NotNil(t, m.Options.Unique)
				assert.True(t, *m.Options.Unique)
				found = true
			}
		}
		assert.True(t, found, "%s.%s should be unique", collection, field)
	}
}

func TestIndexes_EmergencyPairLookup(t *testing.T) {
	models := Indexes()["emergencies"]
	require.NotEmpty(t, models)

	keys := models[0].Keys.(bson.D)
	var names []string
	for _, k := range keys {
		names = append(names, k.Key)
	}
	assert.Equal(t, []string{"driver_number", "vehicle_number", "status", "created_at"}, names)
}

func TestConnect_InvalidURI(t *testing.T) {
	_, err := Connect("not-a-uri")
	assert.Error(t, err)
}
