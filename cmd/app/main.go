package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atvirokodosprendimai/cmdb/internal/adapters/db/sqlstore"
	httpadapter "github.com/atvirokodosprendimai/cmdb/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/cmdb/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/cmdb/internal/application"
	"github.com/atvirokodosprendimai/cmdb/internal/config"
	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/atvirokodosprendimai/cmdb/internal/logging"
	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	config.LoadDotEnv()

	root := &cli.Command{
		Name:  "cmdb",
		Usage: "Configuration management database server and CLI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Usage: "client transport: uds or http"},
			&cli.StringFlag{Name: "server", Usage: "HTTP API base URL"},
			&cli.StringFlag{Name: "socket", Usage: "JSON-RPC unix socket path"},
		},
		Commands: []*cli.Command{
			serverCommand(),
			configCommand(),
			healthCommand(),
			cisCommand(),
			relationshipsCommand(),
			ticketsCommand(),
			slaCommand(),
			dashboardCommand(),
			topologyCommand(),
			usersCommand(),
			auditCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the HTTP API and the JSON-RPC socket",
		Flags: config.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.FromCommand(c)
			if err != nil {
				return err
			}
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := sqlstore.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := sqlstore.RunMigrations(ctx, db); err != nil {
		return err
	}

	repo := sqlstore.NewRepository(db)
	service := application.NewCMDBService(repo, logger)
	if err := service.BootstrapUser(ctx, cfg.BootstrapUsername, cfg.BootstrapPassword); err != nil {
		return err
	}

	router := httpadapter.NewRouter(service, logger)
	srv := &http.Server{Addr: cfg.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(cfg.RPCSocket, service, logger)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	logger.Info().Str("socket", cfg.RPCSocket).Msg("json-rpc listening")

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("db_driver", cfg.DBDriver).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Client connection settings",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective client settings",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(cfg)
					}
					printKV([][2]string{{"transport", cfg.Transport}, {"server", cfg.Server}, {"socket", cfg.Socket}})
					return nil
				},
			},
			{
				Name:  "save",
				Usage: "Persist --transport, --server and --socket as the defaults",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("saved transport=%s\n", cfg.Transport)
					return nil
				},
			},
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the server is reachable",
		Flags: []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			out, err := doHealth(ctx, cfg)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}
			printKV([][2]string{{"status", fmt.Sprint(out["status"])}, {"timestamp", fmt.Sprint(out["timestamp"])}})
			return nil
		},
	}
}

func cisCommand() *cli.Command {
	return &cli.Command{
		Name:  "cis",
		Usage: "Configuration item commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List configuration items",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					out, err := doCIsList(ctx, cfg)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printCIs(out)
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "Show one configuration item",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					out, err := doCIGet(ctx, cfg, id)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printCI(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create a configuration item",
				Flags: append(ciFlags(true), jsonFlag()),
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					item := domain.ConfigurationItem{
						Name:            c.String("name"),
						Type:            c.String("type"),
						Status:          c.String("status"),
						Location:        c.String("location"),
						Hostname:        c.String("hostname"),
						IPAddress:       c.String("ip"),
						Environment:     c.String("environment"),
						BusinessService: c.String("business-service"),
						Owner:           c.String("owner"),
						OperatingSystem: c.String("os"),
					}
					if item.Metadata, err = metadataArg(c); err != nil {
						return err
					}
					out, err := doCICreate(ctx, cfg, item)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printCI(out)
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "Update the given fields of a configuration item",
				ArgsUsage: "<id>",
				Flags:     append(ciFlags(false), jsonFlag()),
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					patch := domain.CIPatch{
						Name:            stringIfSet(c, "name"),
						Type:            stringIfSet(c, "type"),
						Status:          stringIfSet(c, "status"),
						Location:        stringIfSet(c, "location"),
						Hostname:        stringIfSet(c, "hostname"),
						IPAddress:       stringIfSet(c, "ip"),
						Environment:     stringIfSet(c, "environment"),
						BusinessService: stringIfSet(c, "business-service"),
						Owner:           stringIfSet(c, "owner"),
						OperatingSystem: stringIfSet(c, "os"),
					}
					if patch.Metadata, err = metadataArg(c); err != nil {
						return err
					}
					out, err := doCIUpdate(ctx, cfg, id, patch)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printCI(out)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a configuration item and its relationships",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if err := doCIDelete(ctx, cfg, id); err != nil {
						return err
					}
					fmt.Printf("deleted %s\n", id)
					return nil
				},
			},
			{
				Name:      "relationships",
				Usage:     "List relationships whose source is the configuration item",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					out, err := doCIRelationships(ctx, cfg, id)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printRelationships(out)
					return nil
				},
			},
			{
				Name:      "tickets",
				Usage:     "List tickets referencing the configuration item",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					out, err := doTicketsList(ctx, cfg, domain.TicketFilter{CIID: &id})
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printTickets(out)
					return nil
				},
			},
		},
	}
}

func ciFlags(create bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Required: create},
		&cli.StringFlag{Name: "type", Required: create, Usage: "server, database, application, network or storage"},
		&cli.StringFlag{Name: "status", Usage: "Active, Maintenance, Inactive or Decommissioned"},
		&cli.StringFlag{Name: "location"},
		&cli.StringFlag{Name: "hostname"},
		&cli.StringFlag{Name: "ip", Usage: "IPv4 or IPv6 address"},
		&cli.StringFlag{Name: "environment"},
		&cli.StringFlag{Name: "business-service"},
		&cli.StringFlag{Name: "owner"},
		&cli.StringFlag{Name: "os", Usage: "operating system"},
		&cli.StringFlag{Name: "metadata", Usage: "JSON object"},
	}
}

func relationshipsCommand() *cli.Command {
	return &cli.Command{
		Name:  "relationships",
		Usage: "Relationship commands",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Link two configuration items",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Required: true},
					&cli.StringFlag{Name: "target", Required: true},
					&cli.StringFlag{Name: "type", Value: domain.RelationDependsOn, Usage: "depends_on, connects_to or hosted_on"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					out, err := doRelationshipCreate(ctx, cfg, c.String("source"), c.String("target"), c.String("type"))
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printRelationships([]domain.CIRelationship{out})
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Remove a relationship",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if err := doRelationshipDelete(ctx, cfg, id); err != nil {
						return err
					}
					fmt.Printf("deleted %s\n", id)
					return nil
				},
			},
		},
	}
}

func ticketsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tickets",
		Usage: "Ticket commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tickets, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status"},
					&cli.StringFlag{Name: "priority"},
					&cli.StringFlag{Name: "ci", Usage: "configuration item id"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					filter := domain.TicketFilter{
						Status:   stringIfSet(c, "status"),
						Priority: stringIfSet(c, "priority"),
						CIID:     stringIfSet(c, "ci"),
					}
					out, err := doTicketsList(ctx, cfg, filter)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printTickets(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Open a ticket",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "priority", Required: true, Usage: "Low, Medium, High or Critical"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "status", Value: domain.TicketStatusOpen},
					&cli.StringFlag{Name: "ci", Usage: "configuration item id"},
					&cli.StringFlag{Name: "assignee"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					ticket := domain.Ticket{
						Title:       c.String("title"),
						Priority:    c.String("priority"),
						Description: c.String("description"),
						Status:      c.String("status"),
						Assignee:    c.String("assignee"),
						CIID:        stringIfSet(c, "ci"),
					}
					out, err := doTicketCreate(ctx, cfg, ticket)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printTicket(out)
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "Update the given fields of a ticket",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "priority"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "status"},
					&cli.StringFlag{Name: "ci"},
					&cli.StringFlag{Name: "assignee"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := requireArg(c, "id")
					if err != nil {
						return err
					}
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					patch := domain.TicketPatch{
						Title:       stringIfSet(c, "title"),
						Priority:    stringIfSet(c, "priority"),
						Description: stringIfSet(c, "description"),
						Status:      stringIfSet(c, "status"),
						CIID:        stringIfSet(c, "ci"),
						Assignee:    stringIfSet(c, "assignee"),
					}
					out, err := doTicketUpdate(ctx, cfg, id, patch)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printTicket(out)
					return nil
				},
			},
		},
	}
}

func slaCommand() *cli.Command {
	return &cli.Command{
		Name:  "sla",
		Usage: "SLA metric commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List SLA metrics, most recent measurement first",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					out, err := doSLAList(ctx, cfg)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printSLAMetrics(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Record an SLA measurement",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "metric", Required: true},
					&cli.StringFlag{Name: "service"},
					&cli.FloatFlag{Name: "target"},
					&cli.FloatFlag{Name: "actual"},
					&cli.BoolFlag{Name: "breached"},
					&cli.StringFlag{Name: "ci", Usage: "configuration item id"},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					metric := domain.SLAMetric{
						MetricName:  c.String("metric"),
						ServiceName: c.String("service"),
						TargetValue: c.Float("target"),
						ActualValue: c.Float("actual"),
						Breached:    c.Bool("breached"),
						CIID:        stringIfSet(c, "ci"),
					}
					out, err := doSLACreate(ctx, cfg, metric)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printSLAMetrics([]domain.SLAMetric{out})
					return nil
				},
			},
		},
	}
}

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "Show CI, ticket and SLA totals",
		Flags: []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			out, err := doDashboard(ctx, cfg)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}
			printDashboard(out)
			return nil
		},
	}
}

func topologyCommand() *cli.Command {
	return &cli.Command{
		Name:      "topology",
		Usage:     "Show the radial topology around a configuration item",
		ArgsUsage: "<ci-id>",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := requireArg(c, "ci-id")
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			out, err := doTopology(ctx, cfg, id)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}
			printTopology(out)
			return nil
		},
	}
}

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "User commands (unix socket only)",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					out, err := doUserCreate(ctx, cfg, c.String("username"), c.String("password"))
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"id", out.ID}, {"username", out.Username}, {"created_at", formatTime(out.CreatedAt)}})
					return nil
				},
			},
			{
				Name:  "verify",
				Usage: "Check a user's password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					out, err := doUserVerify(ctx, cfg, c.String("username"), c.String("password"))
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"id", out.ID}, {"username", out.Username}, {"verified", "true"}})
					return nil
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent audit records",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50},
					jsonFlag(),
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					out, err := doAuditList(ctx, cfg, int(c.Int("limit")))
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAuditLogs(out)
					return nil
				},
			},
		},
	}
}

func requireArg(c *cli.Command, name string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", fmt.Errorf("missing <%s> argument", name)
	}
	return v, nil
}

func stringIfSet(c *cli.Command, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

func metadataArg(c *cli.Command) (json.RawMessage, error) {
	if !c.IsSet("metadata") {
		return nil, nil
	}
	raw := json.RawMessage(c.String("metadata"))
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("--metadata must be a JSON object: %w", err)
	}
	return raw, nil
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
