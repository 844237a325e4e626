package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	terneo "github.com/joshp123/terneo-golang"
)

func main() {
	host := flag.String("host", os.Getenv("TERNEO_HOST"), "thermostat hostname or IP")
	serial := flag.String("sn", os.Getenv("TERNEO_SN"), "device serial number")
	port := flag.Int("port", 0, "device web server port")
	username := flag.String("username", os.Getenv("TERNEO_USERNAME"), "basic auth username")
	password := flag.String("password", os.Getenv("TERNEO_PASSWORD"), "basic auth password")
	scale := flag.Int("scale", 0, "temperature divisor (16, or 100 for legacy firmware)")
	jsonOutput := flag.Bool("json", false, "emit JSON instead of a table")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	client, err := terneo.NewClient(terneo.Config{
		SerialNumber:     *serial,
		Host:             *host,
		Port:             *port,
		Username:         *username,
		Password:         *password,
		TemperatureScale: *scale,
	})
	if err != nil {
		fatal("connect", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := outputMode{json: *jsonOutput}
	switch args[0] {
	case "status":
		statusCmd(ctx, client, out)
	case "set-temp":
		if len(args) < 2 {
			fatal("set-temp", fmt.Errorf("missing temperature"))
		}
		celsius, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fatal("set-temp", err)
		}
		if err := client.SetSetpoint(ctx, celsius); err != nil {
			fatal("set-temp", err)
		}
	case "mode":
		if len(args) < 2 {
			fatal("mode", fmt.Errorf("missing mode (schedule|manual)"))
		}
		modeCmd(ctx, client, args[1])
	case "on":
		if err := client.TurnOn(ctx); err != nil {
			fatal("turn on", err)
		}
	case "off":
		if err := client.TurnOff(ctx); err != nil {
			fatal("turn off", err)
		}
	case "watch":
		watchCmd(client, out, args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func statusCmd(ctx context.Context, client *terneo.Client, out outputMode) {
	if err := client.Update(ctx); err != nil {
		fatal("status", err)
	}
	printSnapshot(client.Cached(), out)
}

func modeCmd(ctx context.Context, client *terneo.Client, arg string) {
	var setting terneo.ModeSetting
	switch arg {
	case "schedule", "0":
		setting = terneo.SetSchedule
	case "manual", "1":
		setting = terneo.SetManual
	default:
		fatal("mode", fmt.Errorf("unknown mode %q (want schedule or manual)", arg))
	}
	if err := client.SetMode(ctx, setting); err != nil {
		fatal("mode", err)
	}
}

func watchCmd(client *terneo.Client, out outputMode, args []string) {
	interval := 30 * time.Second
	if len(args) > 0 {
		seconds, err := strconv.Atoi(args[0])
		if err != nil {
			fatal("watch", err)
		}
		interval = time.Duration(seconds) * time.Second
	}

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := client.Update(ctx)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "refresh: %v\n", err)
		} else {
			printSnapshot(client.Cached(), out)
		}
		time.Sleep(interval)
	}
}

func printSnapshot(snapshot terneo.Snapshot, out outputMode) {
	if out.json {
		view := map[string]any{
			"last_updated": snapshot.LastUpdated.Format(time.RFC3339),
		}
		if snapshot.Temperature != nil {
			view["temperature_c"] = *snapshot.Temperature
		}
		if snapshot.Setpoint != nil {
			view["setpoint_c"] = *snapshot.Setpoint
		}
		if snapshot.Mode != nil {
			view["mode"] = snapshot.Mode.String()
		}
		if snapshot.RelayOn != nil {
			view["relay_on"] = *snapshot.RelayOn
		}
		out.printJSON(view)
		return
	}

	rows := [][]string{{"PROPERTY", "VALUE"}}
	if snapshot.Temperature != nil {
		rows = append(rows, []string{"temperature", fmt.Sprintf("%.2f C", *snapshot.Temperature)})
	}
	if snapshot.Setpoint != nil {
		rows = append(rows, []string{"setpoint", fmt.Sprintf("%.2f C", *snapshot.Setpoint)})
	}
	if snapshot.Mode != nil {
		rows = append(rows, []string{"mode", snapshot.Mode.String()})
	}
	if snapshot.RelayOn != nil {
		rows = append(rows, []string{"relay", onOff(*snapshot.RelayOn)})
	}
	rows = append(rows, []string{"updated", snapshot.LastUpdated.Format(time.RFC3339)})
	out.table(rows)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: terneo-cli [flags] <command>

commands:
  status                 refresh and print device state
  set-temp <celsius>     write the target temperature
  mode <schedule|manual> switch operating mode
  on                     power the thermostat on
  off                    power the thermostat off
  watch [seconds]        poll and print state continuously

flags:`)
	flag.PrintDefaults()
}
