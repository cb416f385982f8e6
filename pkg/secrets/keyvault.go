// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package secrets reads the downstream credential pair from Azure Key
// Vault. The vault is queried exactly once at process startup; nothing in
// this package runs on the request path.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// Getter fetches a named secret's current value.
type Getter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// KeyVault is a read-only Azure Key Vault client using the ambient
// workload identity (managed identity on Container Apps, CLI login
// locally).
type KeyVault struct {
	client *azsecrets.Client
}

// NewKeyVault constructs a client for the given vault URL.
func NewKeyVault(vaultURL string) (*KeyVault, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("acquire azure credential: %w", err)
	}

	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create key vault client: %w", err)
	}

	return &KeyVault{client: client}, nil
}

// GetSecret implements Getter, returning the latest version of the named
// secret.
func (k *KeyVault) GetSecret(ctx context.Context, name string) (string, error) {
	resp, err := k.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", fmt.Errorf("get secret %q: %w", name, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %q has no value", name)
	}
	return *resp.Value, nil
}

// FetchBasicPair resolves the downstream username/password from the given
// secret names.
func FetchBasicPair(ctx context.Context, g Getter, usernameSecret, passwordSecret string) (string, string, error) {
	username, err := g.GetSecret(ctx, usernameSecret)
	if err != nil {
		return "", "", err
	}
	password, err := g.GetSecret(ctx, passwordSecret)
	if err != nil {
		return "", "", err
	}
	if username == "" || password == "" {
		return "", "", errors.New("downstream credential pair is incomplete")
	}
	return username, password, nil
}
