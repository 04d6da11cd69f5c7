package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tableside/internal/app"
	"tableside/internal/config"
	"tableside/internal/db"
	"tableside/internal/domain"
	"tableside/internal/engine"
	"tableside/internal/menu"
	"tableside/internal/migrate"
	"tableside/internal/render"
	"tableside/internal/repo"
	"tableside/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ts",
	Short: "Tableside CLI",
	Long: `Tableside tracks the live state of a restaurant floor.
- Workspace: the directory holding tableside.yml, menu.yml, and the .tableside database.
- Tables: empty, taken, or reserved; occupancy never exceeds capacity.
- Orders: one open order per taken table; each dish line moves
  ToBePrepared -> Completed or CannotBePrepared and never back.
- Closing an order archives it to the append-only history.
- Views: 'ts table layout' for waiters, 'ts kitchen board' for the kitchen.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TABLESIDE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(tableCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(kitchenCmd())
	rootCmd.AddCommand(menuCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(staffCmd())
	rootCmd.AddCommand(serveCmd())
}

func tableCmd() *cobra.Command {
	tbl := &cobra.Command{Use: "table", Short: "Manage floor tables"}
	tbl.AddCommand(tableListCmd())
	tbl.AddCommand(tableFreeCmd())
	tbl.AddCommand(tableLayoutCmd())
	tbl.AddCommand(tableShowCmd())
	tbl.AddCommand(tableSeatCmd())
	tbl.AddCommand(tableClearCmd())
	tbl.AddCommand(tableReserveCmd())
	tbl.AddCommand(tableCancelReservationCmd())
	return tbl
}

func tableListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				tables, err := e.Tables(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tables)
				}
				render.TablesTable(os.Stdout, tables, e.Now(), e.Config.Window())
				return nil
			})
		},
	}
}

func tableFreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "free",
		Short: "List tables a walk-in party could take",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				tables, err := e.FreeTables(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tables)
				}
				render.TablesTable(os.Stdout, tables, e.Now(), e.Config.Window())
				return nil
			})
		},
	}
}

func tableLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show the waiter floor grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				tables, err := e.Tables(ctx)
				if err != nil {
					return err
				}
				fmt.Print(render.LayoutGrid(tables, e.Config.Floor.Columns, e.Now(), e.Config.Window()))
				return nil
			})
		},
	}
}

func tableShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <table-id>",
		Short: "Show one table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.Lookup(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func tableSeatCmd() *cobra.Command {
	var guests int
	cmd := &cobra.Command{
		Use:   "seat <table-id>",
		Short: "Seat a party at a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.Seat(ctx, id, guests)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().IntVar(&guests, "guests", 0, "party size")
	_ = cmd.MarkFlagRequired("guests")
	return cmd
}

func tableClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <table-id>",
		Short: "Clear a table after its order is settled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.Clear(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func tableReserveCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "reserve <table-id>",
		Short: "Reserve a table for a future time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			when, err := parseReservationTime(at)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.Reserve(ctx, id, when)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "reservation time (RFC3339 or '2006-01-02 15:04')")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func tableCancelReservationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-reservation <table-id>",
		Short: "Release a reserved table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.CancelReservation(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func orderCmd() *cobra.Command {
	ord := &cobra.Command{Use: "order", Short: "Manage table orders"}
	ord.AddCommand(orderPlaceCmd())
	ord.AddCommand(orderShowCmd())
	ord.AddCommand(orderAddCmd())
	ord.AddCommand(orderCloseCmd())
	ord.AddCommand(orderListCmd())
	return ord
}

func orderPlaceCmd() *cobra.Command {
	var dishes []string
	cmd := &cobra.Command{
		Use:   "place <table-id>",
		Short: "Open an order for a taken table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.PlaceOrder(ctx, id, dishes)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringArrayVar(&dishes, "dish", nil, "dish name from the menu (repeatable)")
	_ = cmd.MarkFlagRequired("dish")
	return cmd
}

func orderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <table-id>",
		Short: "Show a table's open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.OrderForTable(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(o)
				}
				render.OrdersTable(os.Stdout, []domain.Order{o})
				return nil
			})
		},
	}
}

func orderAddCmd() *cobra.Command {
	var dishes []string
	cmd := &cobra.Command{
		Use:   "add <table-id>",
		Short: "Append dishes to a table's open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.AddDishes(ctx, id, dishes)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringArrayVar(&dishes, "dish", nil, "dish name from the menu (repeatable)")
	_ = cmd.MarkFlagRequired("dish")
	return cmd
}

func orderCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <table-id>",
		Short: "Close and archive a finished order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.CloseOrder(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}

func orderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				orders, err := e.OpenOrders(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(orders)
				}
				render.OrdersTable(os.Stdout, orders)
				return nil
			})
		},
	}
}

func kitchenCmd() *cobra.Command {
	kit := &cobra.Command{Use: "kitchen", Short: "Kitchen board and dish statuses"}
	kit.AddCommand(kitchenBoardCmd())
	kit.AddCommand(kitchenSetStatusCmd())
	return kit
}

func kitchenBoardCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show open orders as the kitchen sees them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				orders, err := e.OpenOrders(ctx)
				if err != nil {
					return err
				}
				if status != "" {
					parsed, err := domain.ParseDishStatus(status)
					if err != nil {
						return err
					}
					orders = render.FilterByDishStatus(orders, parsed)
				}
				if viper.GetBool("json") {
					return printJSON(orders)
				}
				fmt.Print(render.KitchenBoard(orders))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only orders containing a line in this status")
	return cmd
}

func kitchenSetStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <order-id> <dish-index>",
		Short: "Move a dish line to Completed or CannotBePrepared",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid dish index %q", args[1])
			}
			parsed, err := domain.ParseDishStatus(status)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.UpdateDishStatus(ctx, orderID, index, parsed)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Completed or CannotBePrepared")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func menuCmd() *cobra.Command {
	mn := &cobra.Command{Use: "menu", Short: "Menu catalog"}
	mn.AddCommand(menuInitCmd())
	mn.AddCommand(menuShowCmd())
	return mn
}

func menuInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default menu file",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			path := app.MenuPath(workspace, cfg)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, menu.DefaultYAML(), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func menuShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the menu catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			catalog, err := app.LoadCatalog(workspace, cfg)
			if err != nil {
				return err
			}
			render.MenuTable(os.Stdout, catalog)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	hist := &cobra.Command{Use: "history", Short: "Archived orders"}
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest archived orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				recs, err := e.HistoryTail(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(recs)
				}
				render.HistoryTable(os.Stdout, recs)
				return nil
			})
		},
	}
	tail.Flags().IntVarP(&limit, "limit", "n", 20, "number of records")
	hist.AddCommand(tail)
	return hist
}

func staffCmd() *cobra.Command {
	staff := &cobra.Command{Use: "staff", Short: "Manage staff API keys"}
	staff.AddCommand(staffKeyCreateCmd())
	staff.AddCommand(staffKeyListCmd())
	staff.AddCommand(staffKeyDeleteCmd())
	return staff
}

func staffKeyCreateCmd() *cobra.Command {
	var name, role string
	cmd := &cobra.Command{
		Use:   "key-create",
		Short: "Create a staff API key (the raw key is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case server.RoleWaiter, server.RoleKitchen, server.RoleManager:
			default:
				return fmt.Errorf("role must be waiter, kitchen, or manager")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				raw := uuid.NewString()
				k := domain.StaffKey{
					ID:        uuid.NewString(),
					Name:      name,
					Role:      role,
					KeyHash:   repo.HashStaffKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertStaffKey(ctx, k); err != nil {
					return err
				}
				return printJSON(map[string]string{
					"id":   k.ID,
					"name": k.Name,
					"role": k.Role,
					"key":  raw,
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key holder (e.g. 'pass window display')")
	cmd.Flags().StringVar(&role, "role", "", "waiter, kitchen, or manager")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func staffKeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key-list",
		Short: "List staff API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListStaffKeys(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				render.StaffKeysTable(os.Stdout, keys)
				return nil
			})
		},
	}
}

func staffKeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key-delete <key-id>",
		Short: "Delete a staff API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteStaffKey(ctx, args[0])
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, catalog, err := app.Bootstrap(cmd.Context(), conn, workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg, catalog)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("TABLESIDE_JWT_SECRET"), Logger: e.Log}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("TABLESIDE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(e)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Tableside API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8337", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, catalog, err := app.Bootstrap(ctx, conn, workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg, catalog)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func parseTableID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid table id %q", arg)
	}
	return id, nil
}

func parseReservationTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or '2006-01-02 15:04')", s)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
