package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestEnvOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FULFILLMENT_SERVER_HTTP_PORT", "18080")
	t.Setenv("FULFILLMENT_FULFILLMENT_DRAFT_PREFIX", "tmp-")
	t.Cleanup(viper.Reset)

	MustInit()

	assert.Equal(t, "18080", viper.GetString("server.http.port"))
	assert.Equal(t, "tmp-", viper.GetString("fulfillment.draft_prefix"))
	assert.Equal(t, 20, viper.GetInt("postgres.tx_timeout_seconds"))
	assert.Equal(t, "postgres", viper.GetString("storage.driver"))
}
