package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dmitrijs2005/transfercache/internal/common"
	"github.com/dmitrijs2005/transfercache/internal/config"
	"github.com/dmitrijs2005/transfercache/internal/cryptox"
	"github.com/dmitrijs2005/transfercache/internal/filex"
	"github.com/dmitrijs2005/transfercache/internal/hooks"
	"github.com/dmitrijs2005/transfercache/internal/logging"
	"github.com/dmitrijs2005/transfercache/internal/respcache"
	"github.com/dmitrijs2005/transfercache/internal/taskcache"
)

// ErrResponseCacheDisabled is returned by response cache commands when the
// database could not be opened at startup.
var ErrResponseCacheDisabled = errors.New("response cache is disabled")

type App struct {
	config    *config.Config
	out       io.Writer
	log       logging.Logger
	hook      hooks.Hook
	tasks     *taskcache.Store
	db        *sql.DB
	responses respcache.Repository
}

// NewApp opens both caches described by c. A response cache that cannot be
// opened is logged and left disabled; the task cache must open.
func NewApp(ctx context.Context, c *config.Config, out, errOut io.Writer) (*App, error) {
	log, err := logging.New(errOut, c.LogLevel, c.LogFormat)
	if err != nil {
		return nil, err
	}

	hook, err := buildHook(c, errOut)
	if err != nil {
		return nil, err
	}

	tasks, err := taskcache.New(c.CacheRoot, taskcache.WithHook(hook), taskcache.WithLogger(log))
	if err != nil {
		return nil, err
	}

	a := &App{config: c, out: out, log: log, hook: hook, tasks: tasks}

	db, err := openResponseDB(ctx, c.DatabasePath)
	if err != nil {
		log.Warn(ctx, "response cache disabled", "path", c.DatabasePath, "error", err)
	} else {
		a.db = db
		a.responses = respcache.NewSQLiteRepository(db)
	}
	return a, nil
}

func openResponseDB(ctx context.Context, path string) (*sql.DB, error) {
	if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return respcache.OpenDatabase(ctx, path)
}

// buildHook returns nil when neither encryption nor compression is enabled.
// Compression runs before encryption on write.
func buildHook(c *config.Config, prompt io.Writer) (hooks.Hook, error) {
	var chain []hooks.Hook
	if c.Compress {
		chain = append(chain, hooks.LZ4{})
	}
	if c.Encrypt {
		pass, err := GetPassword(prompt)
		if err != nil {
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
		defer common.WipeByteArray(pass)
		if len(pass) == 0 {
			return nil, fmt.Errorf("%w: empty passphrase", common.ErrInvalidArgument)
		}

		key := cryptox.DeriveKey(pass, []byte(c.KeySalt))
		defer common.WipeByteArray(key)

		aead, err := cryptox.NewAESGCM(key)
		if err != nil {
			return nil, err
		}
		chain = append(chain, aead)
	}

	switch len(chain) {
	case 0:
		return nil, nil
	case 1:
		return chain[0], nil
	default:
		return hooks.Chain(chain...), nil
	}
}

// Close releases the response cache database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *App) responseStore(userID string) (*respcache.Store, error) {
	if a.responses == nil {
		return nil, ErrResponseCacheDisabled
	}
	return respcache.New(a.responses, userID, respcache.WithHook(a.hook), respcache.WithLogger(a.log))
}
