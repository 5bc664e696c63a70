package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/config"
)

type row struct {
	ID   uint
	Name string
}

func TestConnectMongoRequiresURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), config.MongoDBConfig{Database: "openzaak"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGODB_URI")
}

func TestOpenGorm(t *testing.T) {
	db, err := OpenGorm("sqlite", "file:database_test?mode=memory&cache=shared", &row{})
	require.NoError(t, err)
	require.NoError(t, db.Create(&row{Name: "x"}).Error)
	var n int64
	require.NoError(t, db.Model(&row{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	_, err = OpenGorm("oracle", "")
	assert.Error(t, err)
}
