package highlander

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	config := new(Config)

	err := config.Validate()
	assert.Equal(t, ErrConfigAddr, err)

	config.Addr = ":4680"
	err = config.Validate()
	assert.Equal(t, ErrConfigFolder, err)

	config.Folder = t.TempDir()
	err = config.Validate()
	assert.Equal(t, ErrConfigPrivateKey, err)

	priv, err := GenerateKey()
	assert.Nil(t, err)
	config.PrivateKey = priv
	err = config.Validate()
	assert.Equal(t, ErrConfigKeepAlive, err)

	config.KeepAlive = time.Second
	err = config.Validate()
	assert.Equal(t, ErrConfigGatherTime, err)

	config.DataGatherTime = 5 * time.Second
	err = config.Validate()
	assert.Nil(t, err)
}

func TestConfigApplyDefaults(t *testing.T) {
	config := new(Config)
	config.DataGatherTime = 3 * time.Second
	config.ApplyDefaults()

	assert.Equal(t, DefaultNextCandidates, config.NextCandidates)
	assert.Equal(t, 8, config.RelationshipCount)
	assert.Equal(t, 3, config.RelationshipRetry)
	assert.Equal(t, 5*time.Second, config.RelationshipTime)
	assert.Equal(t, uint64(256), config.ThinRetention)
	assert.Equal(t, config.DataGatherTime, config.CallbackDeadline)
}
