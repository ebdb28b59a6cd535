// Package risk provides risk scoring for yield opportunities.
package risk

import "strings"

// CentralizationTier classifies how centralized a protocol's control is.
type CentralizationTier string

const (
	CentralizationLow    CentralizationTier = "low"
	CentralizationMedium CentralizationTier = "medium"
	CentralizationHigh   CentralizationTier = "high"
)

// ProtocolProfile holds the static risk attributes of a known protocol.
type ProtocolProfile struct {
	Name                string
	Audited             bool
	AgeDays             int
	LastIncidentDaysAgo int // 0 means no recorded incident
	Centralization      CentralizationTier
	InsuranceFund       bool
	BaseRisk            int // starting smart-contract risk score
}

// defaultProfile is the conservative fallback for unknown protocols.
var defaultProfile = ProtocolProfile{
	Name:           "unknown",
	Audited:        false,
	AgeDays:        90,
	Centralization: CentralizationHigh,
	InsuranceFund:  false,
	BaseRisk:       70,
}

// profiles is the built-in registry of known protocols.
var profiles = map[string]ProtocolProfile{
	"kamino": {
		Name:           "kamino",
		Audited:        true,
		AgeDays:        900,
		Centralization: CentralizationMedium,
		InsuranceFund:  false,
		BaseRisk:       20,
	},
	"marinade": {
		Name:           "marinade",
		Audited:        true,
		AgeDays:        1400,
		Centralization: CentralizationLow,
		InsuranceFund:  false,
		BaseRisk:       15,
	},
	"solend": {
		Name:                "solend",
		Audited:             true,
		AgeDays:             1300,
		LastIncidentDaysAgo: 900,
		Centralization:      CentralizationMedium,
		InsuranceFund:       false,
		BaseRisk:            25,
	},
	"orca": {
		Name:           "orca",
		Audited:        true,
		AgeDays:        1500,
		Centralization: CentralizationLow,
		InsuranceFund:  false,
		BaseRisk:       18,
	},
	"raydium": {
		Name:                "raydium",
		Audited:             true,
		AgeDays:             1600,
		LastIncidentDaysAgo: 600,
		Centralization:      CentralizationMedium,
		InsuranceFund:       false,
		BaseRisk:            25,
	},
	"drift": {
		Name:           "drift",
		Audited:        true,
		AgeDays:        1000,
		Centralization: CentralizationMedium,
		InsuranceFund:  true,
		BaseRisk:       25,
	},
	"jito": {
		Name:           "jito",
		Audited:        true,
		AgeDays:        800,
		Centralization: CentralizationLow,
		InsuranceFund:  false,
		BaseRisk:       18,
	},
	"meteora": {
		Name:           "meteora",
		Audited:        true,
		AgeDays:        700,
		Centralization: CentralizationMedium,
		InsuranceFund:  false,
		BaseRisk:       25,
	},
	"mango": {
		Name:                "mango",
		Audited:             true,
		AgeDays:             1400,
		LastIncidentDaysAgo: 700,
		Centralization:      CentralizationMedium,
		InsuranceFund:       true,
		BaseRisk:            30,
	},
	"lulo": {
		Name:           "lulo",
		Audited:        false,
		AgeDays:        300,
		Centralization: CentralizationHigh,
		InsuranceFund:  false,
		BaseRisk:       45,
	},
}

// ProfileFor returns the profile for a protocol, falling back to the
// conservative default for unknown protocols. It never fails.
func ProfileFor(protocol string) (ProtocolProfile, bool) {
	p, ok := profiles[strings.ToLower(protocol)]
	if !ok {
		return defaultProfile, false
	}
	return p, true
}

// AssetClass classifies an asset's volatility profile.
type AssetClass string

const (
	AssetStable AssetClass = "stable"
	AssetMajor  AssetClass = "major"
	AssetAlt    AssetClass = "alt"
)

var stablecoins = map[string]bool{
	"USDC":  true,
	"USDT":  true,
	"DAI":   true,
	"PYUSD": true,
	"USDH":  true,
	"UXD":   true,
}

var majors = map[string]bool{
	"SOL":     true,
	"MSOL":    true,
	"JITOSOL": true,
	"BSOL":    true,
	"STSOL":   true,
	"ETH":     true,
	"WETH":    true,
	"BTC":     true,
	"WBTC":    true,
}

// ClassifyAsset returns the volatility class for an asset symbol.
func ClassifyAsset(symbol string) AssetClass {
	upper := strings.ToUpper(symbol)
	if stablecoins[upper] {
		return AssetStable
	}
	if majors[upper] {
		return AssetMajor
	}
	return AssetAlt
}

// IsLiquidStakingToken reports whether a major asset is a staking derivative
// rather than the underlying. Derivatives carry a small depeg premium.
func IsLiquidStakingToken(symbol string) bool {
	switch strings.ToUpper(symbol) {
	case "MSOL", "JITOSOL", "BSOL", "STSOL":
		return true
	}
	return false
}
