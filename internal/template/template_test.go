package template

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir string, doc map[string]interface{}) string {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "template.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func baseDoc() map[string]interface{} {
	return map[string]interface{}{
		"chargePointVendor": "Acme",
		"chargePointModel":  "Zapper",
		"ocppVersion":       "1.6",
		"numberOfConnectors": 2,
		"power":             22000,
		"voltageOut":        230,
		"numberOfPhases":    3,
		"chargeBoxSerialNumberPrefix": "ACME-",
		"randomSerialNumber": true,
	}
}

func TestReconcileBuildsFlatConnectorModel(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, baseDoc())
	caches := NewCaches(8)

	info, model, err := Reconcile(caches, 0, path, filepath.Join(dir, "missing-config.json"))
	require.NoError(t, err)
	assert.False(t, model.UsesEvses())
	assert.Equal(t, 3, len(model.Connectors)) // 0,1,2
	assert.Greater(t, info.MaximumAmperage, 0.0)
	assert.Len(t, info.ChargeBoxSerialNumber, len("ACME-")+8)
}

func TestReconcileRejectsBothConnectorsAndEvses(t *testing.T) {
	dir := t.TempDir()
	doc := baseDoc()
	doc["Connectors"] = map[string]interface{}{"1": map[string]interface{}{}}
	doc["Evses"] = map[string]interface{}{"1": map[string]interface{}{"Connectors": map[string]interface{}{"1": map[string]interface{}{}}}}
	path := writeTemplate(t, dir, doc)
	caches := NewCaches(8)

	_, _, err := Reconcile(caches, 0, path, filepath.Join(dir, "missing-config.json"))
	require.Error(t, err)
	var fatal *FatalError
	assert.ErrorAs(t, err, &fatal)
}

func TestReconcileBuildsEvseModel(t *testing.T) {
	dir := t.TempDir()
	doc := baseDoc()
	delete(doc, "numberOfConnectors")
	doc["Evses"] = map[string]interface{}{
		"1": map[string]interface{}{"Connectors": map[string]interface{}{"1": map[string]interface{}{}}},
		"2": map[string]interface{}{"Connectors": map[string]interface{}{"1": map[string]interface{}{}}},
	}
	path := writeTemplate(t, dir, doc)
	caches := NewCaches(8)

	_, m, err := Reconcile(caches, 0, path, filepath.Join(dir, "missing-config.json"))
	require.NoError(t, err)
	assert.True(t, m.UsesEvses())
	assert.Equal(t, 2, m.NumberOfEvses())
}

func TestReconcileEmptyTemplateFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))
	caches := NewCaches(8)

	_, _, err := Reconcile(caches, 0, path, filepath.Join(dir, "missing-config.json"))
	require.Error(t, err)
}

func TestLoadTemplateCachesByHash(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, baseDoc())
	caches := NewCaches(8)

	doc1, hash1, err := LoadTemplate(caches, path)
	require.NoError(t, err)
	doc2, hash2, err := LoadTemplate(caches, path)
	require.NoError(t, err)

	assert.Equal(t, hash1, hash2)
	assert.Same(t, doc1, doc2)
}

func TestReconcileReusesPersistedStationInfoOnMatchingLineage(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, baseDoc())
	caches := NewCaches(8)

	_, hash, err := LoadTemplate(caches, path)
	require.NoError(t, err)

	first, _, err := Reconcile(caches, 0, path, filepath.Join(dir, "missing-config.json"))
	require.NoError(t, err)

	persisted := PersistedDoc{
		ConfigurationHash: "cfg-hash-1",
		TemplateHash:      hash,
		StationInfo:       first,
	}
	raw, err := json.Marshal(persisted)
	require.NoError(t, err)
	configPath := filepath.Join(dir, "configuration.json")
	require.NoError(t, os.WriteFile(configPath, raw, 0o644))

	caches2 := NewCaches(8)
	second, _, err := Reconcile(caches2, 0, path, configPath)
	require.NoError(t, err)
	assert.Equal(t, first.ChargeBoxSerialNumber, second.ChargeBoxSerialNumber)
}
