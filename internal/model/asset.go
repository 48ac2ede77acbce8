package model

import (
	"fmt"
	"strings"
)

// Asset is a currency or commodity code such as "BTC" or "AUD".
type Asset string

const (
	AssetAUD Asset = "AUD"
	AssetBTC Asset = "BTC"
	AssetXRP Asset = "XRP"
	AssetBCH Asset = "BCH"
)

// DefaultAssets are the asset codes the exchange export is known to carry.
var DefaultAssets = []Asset{AssetAUD, AssetBTC, AssetXRP, AssetBCH}

// AssetSet is a set of recognised asset codes.
type AssetSet map[Asset]bool

// NewAssetSet builds a set from codes. Codes are upper-cased.
func NewAssetSet(codes ...Asset) AssetSet {
	s := make(AssetSet, len(codes))
	for _, c := range codes {
		s[Asset(strings.ToUpper(string(c)))] = true
	}
	return s
}

// Parse returns the asset for code, or an error if it is not in the set.
func (s AssetSet) Parse(code string) (Asset, error) {
	a := Asset(strings.TrimSpace(code))
	if !s[a] {
		return "", fmt.Errorf("unknown asset code %q", code)
	}
	return a, nil
}
