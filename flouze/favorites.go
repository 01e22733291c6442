package flouze

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/gjson"

	"github.com/flouzetrack/flouze-cli/apiclient"
)

// ErrInvalidAddress is returned for a string that is not a 20-byte hex
// Ethereum address.
var ErrInvalidAddress = errors.New("invalid ethereum address")

// FavoriteWallet is a wallet the user registered under a label.
type FavoriteWallet struct {
	ID      string `json:"id"`
	Address string `json:"walletAddress"`
	Label   string `json:"label"`
}

// UnmarshalJSON accepts both "walletAddress" (list responses) and
// "address" (create/update payload echoes).
func (f *FavoriteWallet) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("invalid favorite wallet JSON")
	}
	res := gjson.ParseBytes(data)
	f.ID = res.Get("id").String()
	f.Label = res.Get("label").String()
	f.Address = res.Get("walletAddress").String()
	if f.Address == "" {
		f.Address = res.Get("address").String()
	}
	return nil
}

// NormalizeAddress validates addr and returns its EIP-55 checksum form.
func NormalizeAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

type favoritePayload struct {
	Address string `json:"address"`
	Label   string `json:"label"`
}

// Favorites lists the user's favorite wallets.
func (a *API) Favorites(ctx context.Context) ([]FavoriteWallet, error) {
	var out []FavoriteWallet
	if err := a.get(ctx, "/favorites", nil, &out); err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	return out, nil
}

// CreateFavorite registers address under label.
func (a *API) CreateFavorite(ctx context.Context, address, label string) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	req := apiclient.NewRequest(http.MethodPost, "/favorites/create")
	if err := a.send(ctx, req, favoritePayload{Address: addr, Label: label}, nil); err != nil {
		return fmt.Errorf("creating favorite: %w", err)
	}
	return nil
}

// UpdateFavorite changes the address and label of favorite id.
func (a *API) UpdateFavorite(ctx context.Context, id, address, label string) error {
	if id == "" {
		return errors.New("favorite id is required")
	}
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	req := apiclient.NewRequest(http.MethodPut, "/favorites/"+url.PathEscape(id))
	if err := a.send(ctx, req, favoritePayload{Address: addr, Label: label}, nil); err != nil {
		return fmt.Errorf("updating favorite %s: %w", id, err)
	}
	return nil
}

// DeleteFavorite removes favorite id.
func (a *API) DeleteFavorite(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("favorite id is required")
	}
	req := apiclient.NewRequest(http.MethodDelete, "/favorites/"+url.PathEscape(id))
	if err := a.c.Do(ctx, req, nil); err != nil {
		return fmt.Errorf("deleting favorite %s: %w", id, err)
	}
	return nil
}
