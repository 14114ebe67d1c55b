package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/stepauth/pkg/cryptox"
	"github.com/aussiebroadwan/stepauth/pkg/jwtx"
)

// InitSigner loads the token signing key.
//
// With no key file the key is generated in memory and every outstanding
// challenge and session token dies with the process. With a key file the key
// is created on first start and reused afterwards.
func InitSigner(cfg Config, logger *slog.Logger) (*jwtx.EdDSASigner, error) {
	var (
		keyPEM []byte
		err    error
	)
	if cfg.SigningKeyFile == "" {
		keyPEM, err = cryptox.GenerateEd25519Key()
	} else {
		keyPEM, err = cryptox.LoadOrCreateEd25519Key(cfg.SigningKeyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	signer, err := jwtx.NewEdDSASigner(keyPEM)
	if err != nil {
		return nil, err
	}

	mode := "ephemeral"
	if cfg.SigningKeyFile != "" {
		mode = "persistent"
	}
	logger.Info("signing key ready", "kid", signer.KID(), "mode", mode)
	return signer, nil
}
