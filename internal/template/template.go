// Package template implements the template+configuration reconciler
// (spec §4.1): loading a station template, merging it with any
// persisted configuration, deriving serial numbers and amperage, and
// building the initial connector/EVSE model.
package template

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"time"

	"github.com/ocppsim/charging-station-simulator/internal/cache"
	"github.com/ocppsim/charging-station-simulator/internal/electric"
	"github.com/ocppsim/charging-station-simulator/internal/model"
)

// FatalError wraps a startup error that should abort creation of one
// station without affecting sibling stations in a Pool (spec §7).
type FatalError struct {
	Field string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("template: fatal error in %s: %v", e.Field, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Connector is the template's per-connector declaration.
type Connector struct {
	BootStatus *string `json:"bootStatus,omitempty"`
}

// Evse is the template's per-EVSE declaration.
type Evse struct {
	Connectors map[string]Connector `json:"Connectors,omitempty"`
}

// FirmwareUpgrade describes the optional version-bump-on-install behavior.
type FirmwareUpgrade struct {
	VersionUpgrade *struct {
		Step         int    `json:"step"`
		PatternGroup int    `json:"patternGroup"`
	} `json:"versionUpgrade,omitempty"`
	Reset bool `json:"reset,omitempty"`
}

// Doc is the parsed shape of a template JSON file (spec §6).
type Doc struct {
	BaseName  string `json:"baseName,omitempty"`
	NameSuffix string `json:"nameSuffix,omitempty"`
	FixedName string `json:"fixedName,omitempty"`

	ChargePointVendor       string `json:"chargePointVendor"`
	ChargePointModel        string `json:"chargePointModel"`
	ChargeBoxSerialNumberPrefix   string `json:"chargeBoxSerialNumberPrefix,omitempty"`
	ChargePointSerialNumberPrefix string `json:"chargePointSerialNumberPrefix,omitempty"`
	MeterSerialNumberPrefix       string `json:"meterSerialNumberPrefix,omitempty"`
	MeterType                     string `json:"meterType,omitempty"`
	RandomSerialNumber            *bool  `json:"randomSerialNumber,omitempty"`

	FirmwareVersion        string          `json:"firmwareVersion,omitempty"`
	FirmwareVersionPattern string          `json:"firmwareVersionPattern,omitempty"`
	FirmwareUpgrade        FirmwareUpgrade `json:"firmwareUpgrade,omitempty"`
	FirmwareStatus         string          `json:"firmwareStatus,omitempty"`

	OcppVersion string `json:"ocppVersion"`

	CurrentOutType string  `json:"currentOutType,omitempty"`
	VoltageOut     float64 `json:"voltageOut,omitempty"`
	NumberOfPhases int     `json:"numberOfPhases,omitempty"`
	Power          float64 `json:"power,omitempty"`
	PowerUnit      string  `json:"powerUnit,omitempty"`
	MaximumAmperage float64 `json:"maximumAmperage,omitempty"`

	NumberOfConnectors int  `json:"numberOfConnectors,omitempty"`
	RandomConnectors   bool `json:"randomConnectors,omitempty"`
	UseConnectorID0    bool `json:"useConnectorId0,omitempty"`

	Connectors map[string]Connector `json:"Connectors,omitempty"`
	Evses      map[string]Evse      `json:"Evses,omitempty"`

	SupervisionUrls                []string `json:"supervisionUrls,omitempty"`
	SupervisionUrl                 string   `json:"supervisionUrl,omitempty"` // deprecated

	AutoRegister              *bool `json:"autoRegister,omitempty"`
	RegistrationMaxRetries    *int  `json:"registrationMaxRetries,omitempty"`
	AutoReconnectMaxRetries   *int  `json:"autoReconnectMaxRetries,omitempty"`
	ReconnectExponentialDelay *bool `json:"reconnectExponentialDelay,omitempty"`
	ResetTime                 *int  `json:"resetTime,omitempty"`

	BeginEndMeterValues                                   *bool `json:"beginEndMeterValues,omitempty"`
	OcppStrictCompliance                                  *bool `json:"ocppStrictCompliance,omitempty"`
	OutOfOrderEndMeterValues                              *bool `json:"outOfOrderEndMeterValues,omitempty"`
	MeteringPerTransaction                                *bool `json:"meteringPerTransaction,omitempty"`
	StationInfoPersistentConfiguration                    *bool `json:"stationInfoPersistentConfiguration,omitempty"`
	OcppPersistentConfiguration                           *bool `json:"ocppPersistentConfiguration,omitempty"`
	AutomaticTransactionGeneratorPersistentConfiguration  *bool `json:"automaticTransactionGeneratorPersistentConfiguration,omitempty"`
	EnableStatistics                                      *bool `json:"enableStatistics,omitempty"`
	StopTransactionsOnStopped                             *bool `json:"stopTransactionsOnStopped,omitempty"`
	PowerSharedByConnectors                                *bool `json:"powerSharedByConnectors,omitempty"`
	RemoteAuthorization                                   *bool `json:"remoteAuthorization,omitempty"`

	// Deprecated keys, accepted so that templates using them still parse.
	// Their values are not applied to any other field; only the deprecated
	// supervisionUrl key is carried forward (see applyTemplate).
	AuthorizationFile      string `json:"authorizationFile,omitempty"`
	PayloadSchemaValidation *bool `json:"payloadSchemaValidation,omitempty"`
	MustAuthorizeAtRemoteStart *bool `json:"mustAuthorizeAtRemoteStart,omitempty"`
}

// PersistedDoc is the shape of a configuration.json file (spec §6).
type PersistedDoc struct {
	ConfigurationHash string             `json:"configurationHash"`
	TemplateHash      string             `json:"templateHash,omitempty"`
	StationInfo       *model.StationInfo `json:"stationInfo,omitempty"`
	ConfigurationKey  []ConfigKeyDoc     `json:"configurationKey,omitempty"`
	ConnectorsStatus  map[string]string  `json:"connectorsStatus,omitempty"`
	EvsesStatus       map[string]string  `json:"evsesStatus,omitempty"`
}

// ConfigKeyDoc mirrors configuration.Key for JSON persistence without an
// import cycle back into the configuration package's Store type.
type ConfigKeyDoc struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Readonly bool   `json:"readonly"`
	Visible  bool   `json:"visible"`
	Reboot   bool   `json:"reboot"`
}

// Caches is the process-wide singleton set the reconciler reads through
// (spec §9 "Singleton caches").
type Caches struct {
	Templates *cache.LRU[string, *Doc]
	Configs   *cache.LRU[string, *PersistedDoc]
}

// NewCaches builds empty template/config caches of the given capacity.
func NewCaches(capacity int) *Caches {
	return &Caches{
		Templates: cache.NewLRU[string, *Doc](capacity),
		Configs:   cache.NewLRU[string, *PersistedDoc](capacity),
	}
}

// HashJSON computes the hex SHA-256 of the canonical (key-sorted) JSON
// encoding of v (spec §4.1 step 1).
func HashJSON(v interface{}) (string, error) {
	canonical, err := canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize round-trips v through json.Marshal/Unmarshal into a
// generic map so key order in the source encoding does not affect the
// hash (Go's encoding/json already sorts map keys on Marshal).
func canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// LoadTemplate reads and parses a template file, caching the result by
// its own content hash (spec §4.1 step 1, §9). Every call reads, parses
// and hashes the file; calls whose content hashes the same get the same
// cached *Doc.
func LoadTemplate(caches *Caches, path string) (doc *Doc, hash string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", &FatalError{Field: "templateFile", Err: err}
	}
	if len(data) == 0 {
		return nil, "", &FatalError{Field: "templateFile", Err: fmt.Errorf("template file %s is empty", path)}
	}

	var parsed Doc
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, "", &FatalError{Field: "templateFile", Err: err}
	}

	hash, err = HashJSON(parsed)
	if err != nil {
		return nil, "", &FatalError{Field: "templateFile", Err: err}
	}

	cached, err := caches.Templates.GetOrCompute(hash, func() (*Doc, error) {
		return &parsed, nil
	})
	if err != nil {
		return nil, "", err
	}
	return cached, hash, nil
}

// LoadConfiguration reads and parses a persisted configuration file, if
// present. A missing file is not an error — it simply means there is no
// prior lineage.
func LoadConfiguration(caches *Caches, path string) (*PersistedDoc, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var parsed PersistedDoc
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	return caches.Configs.GetOrCompute(parsed.ConfigurationHash, func() (*PersistedDoc, error) {
		return &parsed, nil
	})
}

var serialSuffixPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

// randomHexSuffix returns an 8-hex-digit random suffix for serial
// numbers (spec §4.1 step 4).
func randomHexSuffix() (string, error) {
	buf := make([]byte, 4)
	max := big.NewInt(1 << 32)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	n.FillBytes(buf)
	return hex.EncodeToString(buf), nil
}

// Reconcile runs the full algorithm of spec §4.1 and returns a populated
// StationInfo plus the initial connector/EVSE model.
func Reconcile(caches *Caches, index int, templatePath, configPath string) (*model.StationInfo, *model.StationModel, error) {
	doc, templateHash, err := LoadTemplate(caches, templatePath)
	if err != nil {
		return nil, nil, err
	}

	persisted, err := LoadConfiguration(caches, configPath)
	if err != nil {
		return nil, nil, err
	}

	info := &model.StationInfo{TemplateFile: templatePath, HashID: templateHash}

	lineageMatches := persisted != nil && persisted.TemplateHash == templateHash
	if lineageMatches && persisted.StationInfo != nil {
		*info = *persisted.StationInfo
		info.TemplateFile = templatePath
		info.HashID = templateHash
	} else {
		if err := applyTemplate(info, doc); err != nil {
			return nil, nil, err
		}
		// Propagate persisted serial numbers only if the template still
		// declares the same prefixes (spec §4.1 step 3).
		if persisted != nil && persisted.StationInfo != nil {
			propagateSerials(info, persisted.StationInfo, doc)
		}
	}

	if err := generateSerialNumbers(info, doc); err != nil {
		return nil, nil, err
	}

	info.MaximumAmperage = electric.AmperageFromPower(info.MaximumPower, info.NumberOfPhases, info.VoltageOut, info.CurrentOutType)

	validateFirmware(info)
	applyFirmwareUpgrade(info, doc)

	stationModel, err := buildModel(doc)
	if err != nil {
		return nil, nil, err
	}

	applyPersistedConnectorStatus(stationModel, persisted)

	info.StationID = stationID(index, info)

	return info, stationModel, nil
}

func applyTemplate(info *model.StationInfo, doc *Doc) error {
	if doc.OcppVersion != string(model.OCPPVersion16) && doc.OcppVersion != string(model.OCPPVersion201) {
		return &FatalError{Field: "ocppVersion", Err: fmt.Errorf("unsupported OCPP version %q", doc.OcppVersion)}
	}
	info.OCPPVersion = model.OCPPVersion(doc.OcppVersion)

	info.ChargePointVendor = doc.ChargePointVendor
	info.ChargePointModel = doc.ChargePointModel
	info.MeterType = doc.MeterType
	info.FirmwareVersion = doc.FirmwareVersion
	info.FirmwareVersionPattern = doc.FirmwareVersionPattern
	info.FirmwareStatus = doc.FirmwareStatus

	if doc.CurrentOutType == "" {
		info.CurrentOutType = electric.CurrentTypeAC
	} else {
		info.CurrentOutType = electric.CurrentType(doc.CurrentOutType)
	}
	info.VoltageOut = doc.VoltageOut
	if info.VoltageOut == 0 {
		info.VoltageOut = 230
	}
	info.NumberOfPhases = doc.NumberOfPhases
	if info.NumberOfPhases == 0 {
		info.NumberOfPhases = 3
	}
	info.MaximumPower = doc.Power
	if doc.MaximumAmperage > 0 && info.MaximumPower == 0 {
		info.MaximumPower = electric.PowerFromAmperage(doc.MaximumAmperage, info.VoltageOut, info.NumberOfPhases, info.CurrentOutType)
	}

	info.NumberOfConnectors = doc.NumberOfConnectors
	info.RandomConnectors = doc.RandomConnectors
	info.UseConnectorID0 = doc.UseConnectorID0

	info.SupervisionURLs = doc.SupervisionUrls
	if len(info.SupervisionURLs) == 0 && doc.SupervisionUrl != "" {
		info.SupervisionURLs = []string{doc.SupervisionUrl} // deprecated key carried forward
	}

	info.AutoRegister = boolOr(doc.AutoRegister, true)
	info.RegistrationMaxRetries = intOr(doc.RegistrationMaxRetries, -1)
	info.AutoReconnectMaxRetries = intOr(doc.AutoReconnectMaxRetries, -1)
	info.ReconnectExponentialDelay = boolOr(doc.ReconnectExponentialDelay, false)
	info.ResetTime = intOr(doc.ResetTime, 3)
	info.ConnectionTimeout = 30

	info.BeginEndMeterValues = boolOr(doc.BeginEndMeterValues, false)
	info.OcppStrictCompliance = boolOr(doc.OcppStrictCompliance, false)
	info.OutOfOrderEndMeterValues = boolOr(doc.OutOfOrderEndMeterValues, false)
	info.MeteringPerTransaction = boolOr(doc.MeteringPerTransaction, true)
	info.StationInfoPersistentConfiguration = boolOr(doc.StationInfoPersistentConfiguration, true)
	info.OcppPersistentConfiguration = boolOr(doc.OcppPersistentConfiguration, true)
	info.AutomaticTransactionGeneratorPersistentConfiguration = boolOr(doc.AutomaticTransactionGeneratorPersistentConfiguration, true)
	info.EnableStatistics = boolOr(doc.EnableStatistics, true)
	info.StopTransactionsOnStopped = boolOr(doc.StopTransactionsOnStopped, true)
	info.PowerSharedByConnectors = boolOr(doc.PowerSharedByConnectors, false)
	info.RemoteAuthorization = boolOr(doc.RemoteAuthorization, true)
	info.WSPingInterval = 60

	return nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func propagateSerials(info *model.StationInfo, persisted *model.StationInfo, doc *Doc) {
	if doc.ChargeBoxSerialNumberPrefix != "" {
		info.ChargeBoxSerialNumber = persisted.ChargeBoxSerialNumber
	}
	if doc.ChargePointSerialNumberPrefix != "" {
		info.ChargePointSerialNumber = persisted.ChargePointSerialNumber
	}
	if doc.MeterSerialNumberPrefix != "" {
		info.MeterSerialNumber = persisted.MeterSerialNumber
	}
}

func generateSerialNumbers(info *model.StationInfo, doc *Doc) error {
	random := doc.RandomSerialNumber == nil || *doc.RandomSerialNumber

	assign := func(prefix string, existing *string) error {
		if prefix == "" {
			return nil
		}
		if *existing != "" && serialSuffixPattern.MatchString((*existing)[len(*existing)-8:]) {
			return nil // already has a generated suffix from lineage
		}
		if !random {
			*existing = prefix
			return nil
		}
		suffix, err := randomHexSuffix()
		if err != nil {
			return &FatalError{Field: "serialNumber", Err: err}
		}
		*existing = prefix + suffix
		return nil
	}

	if err := assign(doc.ChargeBoxSerialNumberPrefix, &info.ChargeBoxSerialNumber); err != nil {
		return err
	}
	if err := assign(doc.ChargePointSerialNumberPrefix, &info.ChargePointSerialNumber); err != nil {
		return err
	}
	if err := assign(doc.MeterSerialNumberPrefix, &info.MeterSerialNumber); err != nil {
		return err
	}
	return nil
}

func validateFirmware(info *model.StationInfo) {
	if info.FirmwareVersionPattern == "" || info.FirmwareVersion == "" {
		return
	}
	re, err := regexp.Compile(info.FirmwareVersionPattern)
	if err != nil {
		return
	}
	if !re.MatchString(info.FirmwareVersion) {
		// A mismatch is not reported: validateFirmware returns nothing and
		// the reconciler has no logger.
		_ = err
	}
}

func applyFirmwareUpgrade(info *model.StationInfo, doc *Doc) {
	if info.FirmwareStatus != "Installing" || doc.FirmwareUpgrade.VersionUpgrade == nil {
		return
	}
	re, err := regexp.Compile(info.FirmwareVersionPattern)
	if err != nil {
		return
	}
	loc := re.FindStringSubmatchIndex(info.FirmwareVersion)
	if loc == nil {
		return
	}
	group := doc.FirmwareUpgrade.VersionUpgrade.PatternGroup
	if group*2+1 >= len(loc) || loc[group*2] < 0 {
		return
	}
	start, end := loc[group*2], loc[group*2+1]
	var n int
	if _, err := fmt.Sscanf(info.FirmwareVersion[start:end], "%d", &n); err != nil {
		return
	}
	n += doc.FirmwareUpgrade.VersionUpgrade.Step
	info.FirmwareVersion = info.FirmwareVersion[:start] + fmt.Sprintf("%d", n) + info.FirmwareVersion[end:]
	info.FirmwareStatus = "Installed"
}

func buildModel(doc *Doc) (*model.StationModel, error) {
	hasConnectors := len(doc.Connectors) > 0 || (doc.NumberOfConnectors > 0 && len(doc.Evses) == 0)
	hasEvses := len(doc.Evses) > 0

	if hasConnectors && hasEvses {
		return nil, &FatalError{Field: "Connectors/Evses", Err: fmt.Errorf("template declares both Connectors and Evses")}
	}
	if !hasConnectors && !hasEvses {
		return nil, &FatalError{Field: "Connectors/Evses", Err: fmt.Errorf("template declares neither Connectors nor Evses")}
	}

	if hasEvses {
		m := model.NewEvseModel(0, 0)
		for idStr, evseDoc := range doc.Evses {
			id := atoiOr(idStr, 0)
			evse := model.NewEVSE(id)
			for cidStr, cdoc := range evseDoc.Connectors {
				cid := atoiOr(cidStr, 0)
				c := model.NewConnector(cid)
				applyBootStatus(c, cdoc.BootStatus)
				evse.Connectors[cid] = c
			}
			m.Evses[id] = evse
		}
		return m, nil
	}

	m := model.NewConnectorModel(doc.NumberOfConnectors)
	for idStr, cdoc := range doc.Connectors {
		id := atoiOr(idStr, -1)
		if c, ok := m.Connectors[id]; ok {
			applyBootStatus(c, cdoc.BootStatus)
		}
	}
	return m, nil
}

func applyBootStatus(c *model.Connector, raw *string) {
	if raw == nil {
		return
	}
	s := model.Status(*raw)
	c.BootStatus = &s
}

func atoiOr(s string, def int) int {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return def
	}
	return n
}

func applyPersistedConnectorStatus(m *model.StationModel, persisted *PersistedDoc) {
	if persisted == nil {
		return
	}
	statusMap := persisted.ConnectorsStatus
	if m.UsesEvses() {
		statusMap = persisted.EvsesStatus
	}
	for idStr, statusStr := range statusMap {
		id := atoiOr(idStr, -1)
		if c, ok := m.Connector(id); ok {
			s := model.Status(statusStr)
			c.BootStatus = &s
		}
	}
}

func stationID(index int, info *model.StationInfo) string {
	base := info.ChargeBoxSerialNumber
	if base == "" {
		base = info.ChargePointModel
	}
	return fmt.Sprintf("%s-%d-%d", base, index, time.Now().UnixNano()%1000)
}
