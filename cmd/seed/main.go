// Command seed resets the schema and inserts a handful of named
// participants with starting balances/stock, for local manual testing of
// the HTTP surface. Grounded on original_source/create_mock_users_db.py;
// it is explicitly not part of the matching core.
package main

import (
	"context"
	"flag"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"

	"ledger-exchange/config"
	"ledger-exchange/store"
)

// mockParticipant mirrors one row of create_mock_users_db.py's seed list:
// a name and a plaintext password to hash at seed time.
type mockParticipant struct {
	Name     string
	Password string
	Balance  int64
	Stock    int64
}

var defaultParticipants = []mockParticipant{
	{Name: "rik", Password: "foo123", Balance: 1000, Stock: 100},
	{Name: "ada", Password: "bar123", Balance: 1000, Stock: 100},
}

func main() {
	reset := flag.Bool("reset", true, "drop and recreate the schema before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", "err", err)
	}

	st, err := store.Open(cfg.DBLocation)
	if err != nil {
		log.Fatal("open store", "err", err)
	}

	ctx := context.Background()
	if *reset {
		if err := st.Reset(ctx); err != nil {
			log.Fatal("reset schema", "err", err)
		}
	} else if err := st.Bootstrap(ctx); err != nil {
		log.Fatal("bootstrap schema", "err", err)
	}

	for _, p := range defaultParticipants {
		hashed, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("hash password", "participant", p.Name, "err", err)
		}
		err = st.WithTx(ctx, func(tx store.Tx) error {
			id, err := tx.CreateAuth(ctx, p.Name, string(hashed))
			if err != nil {
				return err
			}
			return tx.CreateAccount(ctx, id, p.Balance, p.Stock)
		})
		if err != nil {
			log.Fatal("seed participant", "participant", p.Name, "err", err)
		}
		log.Info("seeded participant", "name", p.Name)
	}
}
