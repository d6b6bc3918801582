package pool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppsim/charging-station-simulator/internal/cache"
	"github.com/ocppsim/charging-station-simulator/internal/template"
)

const validTemplate = `{
	"chargePointVendor": "Acme",
	"chargePointModel": "Widget",
	"ocppVersion": "1.6",
	"numberOfConnectors": 1,
	"supervisionUrls": ["ws://localhost:9999/ocpp"]
}`

const fatalTemplate = `{
	"chargePointVendor": "Acme",
	"chargePointModel": "Widget",
	"ocppVersion": "9.9",
	"numberOfConnectors": 1
}`

// TestLoadSkipsFatalTemplateWithoutAbortingSiblings exercises spec §7's
// "per-station failures never crash sibling stations", generalized to
// pool scope: one template.FatalError must not prevent a good sibling
// template from loading.
func TestLoadSkipsFatalTemplateWithoutAbortingSiblings(t *testing.T) {
	dir := t.TempDir()
	templateDir := filepath.Join(dir, "templates")
	configDir := filepath.Join(dir, "configs")
	require.NoError(t, os.MkdirAll(templateDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(templateDir, "bad.json"), []byte(fatalTemplate), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(templateDir, "good.json"), []byte(validTemplate), 0o644))

	caches := template.NewCaches(8)
	namedLock := cache.NewNamedLock()

	p, err := Load(templateDir, configDir, caches, namedLock, zerolog.Nop(), nil, nil)
	require.NoError(t, err)

	require.Len(t, p.All(), 1)
	assert.Equal(t, "Acme", p.All()[0].Info().ChargePointVendor)

	failures := p.Failures()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].TemplatePath, "bad.json")

	var fatal *template.FatalError
	assert.ErrorAs(t, failures[0].Err, &fatal)
}
