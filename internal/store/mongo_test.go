package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestGroupPipeline(t *testing.T) {
	p := groupPipeline("email")
	require.Len(t, p, 3)

	// Stage 1: ascending sort on the dedupe field makes "first" deterministic.
	require.Len(t, p[0], 1)
	assert.Equal(t, "$sort", p[0][0].Key)
	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, p[0][0].Value)

	// Stage 2: group on the field value, keeping the first whole document.
	require.Len(t, p[1], 1)
	assert.Equal(t, "$group", p[1][0].Key)
	group, ok := p[1][0].Value.(bson.D)
	require.True(t, ok)
	require.Len(t, group, 2)
	assert.Equal(t, "_id", group[0].Key)
	assert.Equal(t, "$email", group[0].Value)
	assert.Equal(t, "doc", group[1].Key)
	assert.Equal(t, bson.D{{Key: "$first", Value: "$$ROOT"}}, group[1].Value)

	// Stage 3: unwrap the grouped document.
	require.Len(t, p[2], 1)
	assert.Equal(t, "$replaceRoot", p[2][0].Key)
	assert.Equal(t, bson.D{{Key: "newRoot", Value: "$doc"}}, p[2][0].Value)
}

func TestGroupPipeline_DottedField(t *testing.T) {
	p := groupPipeline("user.email")
	assert.Equal(t, bson.D{{Key: "user.email", Value: 1}}, p[0][0].Value)
	group := p[1][0].Value.(bson.D)
	assert.Equal(t, "$user.email", group[0].Value)
}
