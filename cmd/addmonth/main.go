// Command addmonth records CPI months by hand, for when the official number
// is out but FRED has not picked it up yet.
//
// Entries are given as arguments of the form
//
//	YYYY-MM=monthly[,annual[,cpi]]
//
// or collected interactively with -interactive. Omitted fields are derived
// from the store.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"inflacion/internal/cli"
	"inflacion/internal/core"
	"inflacion/internal/services"
)

func main() {
	interactive := flag.Bool("interactive", false, "prompt for the entry instead of reading arguments")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	ctx := context.Background()

	var entries []core.ManualEntry
	if *interactive {
		entry, err := promptEntry(os.Stdin)
		if err != nil {
			logger.Error("Invalid input", "error", err)
			os.Exit(1)
		}
		entries = append(entries, entry)
	} else {
		if flag.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "usage: addmonth [-interactive] YYYY-MM=monthly[,annual[,cpi]] ...")
			os.Exit(2)
		}
		for _, arg := range flag.Args() {
			entry, err := parseEntry(arg)
			if err != nil {
				logger.Error("Invalid entry argument", "arg", arg, "error", err)
				os.Exit(1)
			}
			entries = append(entries, entry)
		}
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	var publisher services.Publisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	service := services.NewInflationService(repo, publisher)

	failed := 0
	for _, res := range service.AddManualEntries(ctx, entries) {
		if res.Err != nil {
			logger.Error("Entry rejected", "year", res.Year, "month", res.Month, "error", res.Err)
			failed++
			continue
		}
		logger.Info("Entry stored",
			"date", res.Record.DateString(),
			"monthly", res.Record.Monthly.Float64,
			"annual", res.Record.Annual.Float64,
			"cpi_index", res.Record.Index.Float64)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// parseEntry parses one YYYY-MM=monthly[,annual[,cpi]] argument.
func parseEntry(arg string) (core.ManualEntry, error) {
	datePart, valuePart, found := strings.Cut(arg, "=")
	if !found {
		return core.ManualEntry{}, fmt.Errorf("missing '=' in %q", arg)
	}

	month, err := time.Parse("2006-01", strings.TrimSpace(datePart))
	if err != nil {
		return core.ManualEntry{}, fmt.Errorf("parse month %q: want YYYY-MM", datePart)
	}

	entry := core.ManualEntry{Year: month.Year(), Month: int(month.Month())}
	values := strings.Split(valuePart, ",")
	if len(values) > 3 {
		return core.ManualEntry{}, fmt.Errorf("too many values in %q", valuePart)
	}

	entry.Monthly, err = strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
	if err != nil {
		return core.ManualEntry{}, fmt.Errorf("parse monthly rate %q: %w", values[0], err)
	}
	if len(values) > 1 && strings.TrimSpace(values[1]) != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(values[1]), 64)
		if err != nil {
			return core.ManualEntry{}, fmt.Errorf("parse annual rate %q: %w", values[1], err)
		}
		entry.Annual = core.Float(v)
	}
	if len(values) > 2 && strings.TrimSpace(values[2]) != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(values[2]), 64)
		if err != nil {
			return core.ManualEntry{}, fmt.Errorf("parse cpi index %q: %w", values[2], err)
		}
		entry.Index = core.Float(v)
	}
	return entry, nil
}

// promptEntry collects one entry from the terminal. Empty answers to the
// optional prompts leave the field for the service to derive.
func promptEntry(in *os.File) (core.ManualEntry, error) {
	reader := bufio.NewReader(in)

	monthStr, err := prompt(reader, "Month (YYYY-MM): ")
	if err != nil {
		return core.ManualEntry{}, err
	}
	month, err := time.Parse("2006-01", monthStr)
	if err != nil {
		return core.ManualEntry{}, fmt.Errorf("parse month %q: want YYYY-MM", monthStr)
	}
	entry := core.ManualEntry{Year: month.Year(), Month: int(month.Month())}

	monthlyStr, err := prompt(reader, "Monthly rate (%): ")
	if err != nil {
		return core.ManualEntry{}, err
	}
	entry.Monthly, err = strconv.ParseFloat(monthlyStr, 64)
	if err != nil {
		return core.ManualEntry{}, fmt.Errorf("parse monthly rate %q: %w", monthlyStr, err)
	}

	annualStr, err := prompt(reader, "Annual rate (%, empty to derive): ")
	if err != nil {
		return core.ManualEntry{}, err
	}
	if annualStr != "" {
		v, err := strconv.ParseFloat(annualStr, 64)
		if err != nil {
			return core.ManualEntry{}, fmt.Errorf("parse annual rate %q: %w", annualStr, err)
		}
		entry.Annual = core.Float(v)
	}

	indexStr, err := prompt(reader, "CPI index (empty to derive): ")
	if err != nil {
		return core.ManualEntry{}, err
	}
	if indexStr != "" {
		v, err := strconv.ParseFloat(indexStr, 64)
		if err != nil {
			return core.ManualEntry{}, fmt.Errorf("parse cpi index %q: %w", indexStr, err)
		}
		entry.Index = core.Float(v)
	}

	return entry, nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
