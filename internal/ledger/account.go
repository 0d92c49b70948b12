package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// User sub-types
	SubTypeWallet AccountSubType = iota

	// System sub-types
	SubTypeSystemVault           // locked position collateral
	SubTypeSystemFees            // stability fee pool (interest + penalties)
	SubTypeSystemSyntheticSupply // issuance counterweight for minted USDB

	// External sub-types
	SubTypeExternalGateway // boundary account for collateral entering custody
)

// AssetID maps asset strings to numeric IDs for performance
type AssetID uint16

var (
	assetToID = map[string]AssetID{
		"BTC":  1,
		"USDB": 2,
	}
	idToAsset = map[AssetID]string{
		1: "BTC",
		2: "USDB",
	}
)

const (
	AssetBTC  AssetID = 1
	AssetUSDB AssetID = 2
)

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey is the in-memory key for balance tracking (21 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID for users, zero for system/external accounts
	SubType  AccountSubType
	AssetID  AssetID
}

// NewUserAccountKey creates a key for a user wallet account
func NewUserAccountKey(account uuid.UUID, subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeUser,
		EntityID: account,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewSystemAccountKey creates a key for system accounts
func NewSystemAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeSystem,
		SubType: subType,
		AssetID: assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// Well-known system accounts. The vault holds every satoshi of locked
// collateral, fees absorbs interest and liquidation penalties, and the
// supply account is the counterweight for all outstanding USDB.
func VaultAccount() AccountKey {
	return NewSystemAccountKey(SubTypeSystemVault, AssetBTC)
}

func FeesAccount() AccountKey {
	return NewSystemAccountKey(SubTypeSystemFees, AssetBTC)
}

func SupplyAccount() AccountKey {
	return NewSystemAccountKey(SubTypeSystemSyntheticSupply, AssetUSDB)
}

func GatewayAccount() AccountKey {
	return NewExternalAccountKey(SubTypeExternalGateway, AssetBTC)
}

// WalletAccount is a user's holding account for the given asset.
func WalletAccount(account uuid.UUID, asset AssetID) AccountKey {
	return NewUserAccountKey(account, SubTypeWallet, asset)
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeUser:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("user:%s:%s:%s", uid.String(), k.subTypeName(), assetName)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

// ParseAccountPath is the inverse of AccountPath, used when restoring
// balances from a snapshot.
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")

	switch {
	case len(parts) == 4 && parts[0] == "user":
		uid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("parse account path %q: %w", path, err)
		}
		subType, ok := subTypeFromName(parts[2])
		if !ok {
			return AccountKey{}, fmt.Errorf("parse account path %q: unknown sub-type", path)
		}
		assetID, ok := GetAssetID(parts[3])
		if !ok {
			return AccountKey{}, fmt.Errorf("parse account path %q: unknown asset", path)
		}
		return NewUserAccountKey(uid, subType, assetID), nil

	case len(parts) == 3 && (parts[0] == "system" || parts[0] == "external"):
		subType, ok := subTypeFromName(parts[1])
		if !ok {
			return AccountKey{}, fmt.Errorf("parse account path %q: unknown sub-type", path)
		}
		assetID, ok := GetAssetID(parts[2])
		if !ok {
			return AccountKey{}, fmt.Errorf("parse account path %q: unknown asset", path)
		}
		if parts[0] == "system" {
			return NewSystemAccountKey(subType, assetID), nil
		}
		return NewExternalAccountKey(subType, assetID), nil
	}

	return AccountKey{}, fmt.Errorf("parse account path %q: bad shape", path)
}

func subTypeFromName(name string) (AccountSubType, bool) {
	switch name {
	case "wallet":
		return SubTypeWallet, true
	case "vault":
		return SubTypeSystemVault, true
	case "fees":
		return SubTypeSystemFees, true
	case "supply":
		return SubTypeSystemSyntheticSupply, true
	case "gateway":
		return SubTypeExternalGateway, true
	}
	return 0, false
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeWallet:
		return "wallet"
	case SubTypeSystemVault:
		return "vault"
	case SubTypeSystemFees:
		return "fees"
	case SubTypeSystemSyntheticSupply:
		return "supply"
	case SubTypeExternalGateway:
		return "gateway"
	default:
		return "unknown"
	}
}
