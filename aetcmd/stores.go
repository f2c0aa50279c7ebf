package aetcmd

import (
	"context"
	"fmt"
	"io"

	"go.brendoncarroll.net/star"

	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/checkpoint"
	"aeterna.dev/aeterna/teleport"
)

var checkpointsCmd = star.Command{
	Metadata: star.Metadata{
		Short: "list the saved checkpoints",
	},
	Flags: []star.IParam{configParam, dbParam, labelParam, verboseParam},
	F: func(c star.Context) error {
		ctx := newContext(c)
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		db, err := openConfiguredDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		ents, err := checkpoint.NewSQL(db).List(ctx, labelParam.Load(c).X)
		if err != nil {
			return err
		}
		return printCheckpoints(c.StdOut, ents)
	},
}

func printCheckpoints(w io.Writer, ents []checkpoint.Entry) error {
	if _, err := fmt.Fprintf(w, "%-6s %-16s %-8s %-20s %s\n", "SEQ", "LABEL", "PC", "TAI64N", "ID"); err != nil {
		return err
	}
	for _, ent := range ents {
		if _, err := fmt.Fprintf(w, "%-6d %-16s %-8d %-20s %v\n", ent.Seq, ent.Label, ent.PC, fmtTAI64N(ent.Seconds, ent.Nanos), ent.ID); err != nil {
			return err
		}
	}
	return nil
}

func fmtTAI64N(secs uint64, nanos uint32) string {
	return fmt.Sprintf("%d.%09d", secs, nanos)
}

var outboxCmd = star.NewDir(star.Metadata{
	Short: "inspect and manage the migration outbox",
}, map[star.Symbol]star.Command{
	"list":        outboxListCmd,
	"hosts":       outboxHostsCmd,
	"add-host":    outboxAddHostCmd,
	"remove-host": outboxRemoveHostCmd,
	"open":        outboxOpenCmd,
	"ack":         outboxAckCmd,
})

var hostParam = star.Param[string]{
	Name:  "host",
	Parse: star.ParseString,
}

var hostFilterParam = star.Param[optional[string]]{
	Name:    "host",
	Default: star.Ptr(""),
	Parse:   parseOptional(star.ParseString),
}

var seqParam = star.Param[uint64]{
	Name:  "seq",
	Parse: parseUint64,
}

var outboxFlags = []star.IParam{configParam, dbParam, verboseParam}

// withOutbox opens the configured database and calls fn with its outbox.
func withOutbox(c star.Context, fn func(ctx context.Context, cfg Config, ob *teleport.Outbox) error) error {
	ctx := newContext(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openConfiguredDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, cfg, teleport.NewOutbox(db))
}

var outboxListCmd = star.Command{
	Metadata: star.Metadata{
		Short: "list the parcels waiting to be forwarded",
	},
	Flags: append([]star.IParam{hostFilterParam}, outboxFlags...),
	F: func(c star.Context) error {
		return withOutbox(c, func(ctx context.Context, cfg Config, ob *teleport.Outbox) error {
			ps, err := ob.List(ctx, hostFilterParam.Load(c).X)
			if err != nil {
				return err
			}
			c.Printf("%-6s %-16s %-8s %s\n", "SEQ", "HOST", "SIZE", "TAI64N")
			for _, p := range ps {
				c.Printf("%-6d %-16s %-8d %s\n", p.Seq, p.Host, p.Size, fmtTAI64N(p.Seconds, p.Nanos))
			}
			return nil
		})
	},
}

var outboxHostsCmd = star.Command{
	Metadata: star.Metadata{
		Short: "list the hosts which can receive parcels",
	},
	Flags: outboxFlags,
	F: func(c star.Context) error {
		return withOutbox(c, func(ctx context.Context, cfg Config, ob *teleport.Outbox) error {
			hosts, err := ob.Hosts(ctx)
			if err != nil {
				return err
			}
			for _, h := range hosts {
				c.Printf("%s\n", h)
			}
			return nil
		})
	},
}

var outboxAddHostCmd = star.Command{
	Metadata: star.Metadata{
		Short: "allow parcels to be sent to a host",
	},
	Flags: outboxFlags,
	Pos:   []star.IParam{hostParam},
	F: func(c star.Context) error {
		return withOutbox(c, func(ctx context.Context, cfg Config, ob *teleport.Outbox) error {
			return ob.AddHost(ctx, hostParam.Load(c))
		})
	},
}

var outboxRemoveHostCmd = star.Command{
	Metadata: star.Metadata{
		Short: "remove a host and drop its parcels",
	},
	Flags: outboxFlags,
	Pos:   []star.IParam{hostParam},
	F: func(c star.Context) error {
		return withOutbox(c, func(ctx context.Context, cfg Config, ob *teleport.Outbox) error {
			return ob.RemoveHost(ctx, hostParam.Load(c))
		})
	},
}

var outboxAckCmd = star.Command{
	Metadata: star.Metadata{
		Short: "mark a parcel as forwarded",
	},
	Flags: outboxFlags,
	Pos:   []star.IParam{seqParam},
	F: func(c star.Context) error {
		return withOutbox(c, func(ctx context.Context, cfg Config, ob *teleport.Outbox) error {
			return ob.Ack(ctx, seqParam.Load(c))
		})
	},
}

var outboxOpenCmd = star.Command{
	Metadata: star.Metadata{
		Short: "decrypt a parcel with the configured secret and print the state it carries",
	},
	Flags: outboxFlags,
	Pos:   []star.IParam{seqParam},
	F: func(c star.Context) error {
		return withOutbox(c, func(ctx context.Context, cfg Config, ob *teleport.Outbox) error {
			if cfg.Teleport.Secret == "" {
				return fmt.Errorf("no secret configured.  set [teleport] secret")
			}
			p, err := ob.Get(ctx, seqParam.Load(c))
			if err != nil {
				return err
			}
			key, err := teleport.NewDerivedKeys(cfg.Teleport.Secret).Key(ctx, p.Host)
			if err != nil {
				return err
			}
			st, err := teleport.Open(key, p.Host, p.Payload)
			if err != nil {
				return err
			}
			return printState(c.StdOut, st)
		})
	},
}

func printState(w io.Writer, st *avm.State) error {
	var used int
	for _, x := range st.Memory {
		if x != 0 {
			used++
		}
	}
	_, err := fmt.Fprintf(w, "CHECKSUM: %v\nPC: %d\nSTACK: %v\nMEMORY: %d cells, %d nonzero\n",
		st.ID(), st.PC, st.Stack, len(st.Memory), used)
	return err
}
