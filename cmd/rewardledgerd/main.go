package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"rewardledger/config"
	"rewardledger/crypto"
	"rewardledger/native/rewards"
	"rewardledger/observability/logging"
	"rewardledger/storage"
)

const envVar = "REWARDLEDGER_ENV"

type batchEntryJSON struct {
	Affiliate string `json:"affiliate"`
	Amount    string `json:"amount"`
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var logOpts []logging.Option
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logging.WithRotatingFile(cfg.LogFile))
	}
	logger := logging.Setup("rewardledgerd", env, logOpts...)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	vault := rewards.NewVaultGateway(db)
	journal := rewards.NewJournal(db)

	engine := rewards.NewEngine()
	engine.SetLedger(rewards.NewLedger(db))
	engine.SetGateway(vault)
	engine.SetJournal(journal)

	authority, authErr := cfg.AuthorityBytes()
	if authErr == nil {
		engine.SetAuthority(authority)
		engine.SetVerifier(rewards.NewRecoveredSignerVerifier(cfg.LedgerID, authority))
	}

	var cmdErr error
	switch args[0] {
	case "status":
		cmdErr = runStatus(engine, vault, args[1:])
	case "fund":
		cmdErr = runFund(vault, logger, args[1:])
	case "distribute":
		cmdErr = requireAuthority(authErr, func() error { return runDistribute(engine, logger, authority, args[1:]) })
	case "claim":
		cmdErr = requireAuthority(authErr, func() error { return runClaim(engine, logger, args[1:]) })
	case "withdraw":
		cmdErr = requireAuthority(authErr, func() error { return runWithdraw(engine, logger, authority, args[1:]) })
	case "sign":
		cmdErr = runSign(cfg.LedgerID, args[1:])
	case "audit":
		cmdErr = runAudit(journal, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		logger.Error("command failed",
			slog.String("command", args[0]),
			slog.String("code", rewards.Code(cmdErr)),
			slog.String("class", string(rewards.Classify(cmdErr))),
			slog.Any("error", cmdErr))
		os.Exit(1)
	}
}

func requireAuthority(authErr error, run func() error) error {
	if authErr != nil {
		return fmt.Errorf("authority not configured: %w", authErr)
	}
	return run()
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rewardledgerd [-config path] <status|fund|distribute|claim|withdraw|sign|audit> [flags]")
}

func decodeAffiliate(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("invalid affiliate address: %w", err)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func runStatus(engine *rewards.Engine, vault *rewards.VaultGateway, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	affiliateFlag := fs.String("affiliate", "", "Affiliate address (bech32)")
	epochFlag := fs.Uint64("epoch", 0, "Epoch to inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}

	balance, err := vault.BalanceOf()
	if err != nil {
		return err
	}
	global, err := engine.GlobalTotal()
	if err != nil {
		return err
	}
	out := map[string]any{
		"custodiedBalance": balance.String(),
		"globalTotal":      global.String(),
	}
	if *affiliateFlag != "" {
		affiliate, err := decodeAffiliate(*affiliateFlag)
		if err != nil {
			return err
		}
		total, err := engine.AffiliateTotal(affiliate)
		if err != nil {
			return err
		}
		claimed, err := engine.HasClaimed(affiliate, *epochFlag)
		if err != nil {
			return err
		}
		out["affiliateTotal"] = total.String()
		out["hasClaimed"] = claimed
	}
	return printJSON(out)
}

func runFund(vault *rewards.VaultGateway, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("fund", flag.ExitOnError)
	amountFlag := fs.String("amount", "", "Amount to credit to the vault")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := parseAmount(*amountFlag)
	if err != nil {
		return err
	}
	if err := vault.Fund(amount); err != nil {
		return err
	}
	logger.Info("vault funded", slog.String("amount", amount.String()))
	return nil
}

func runDistribute(engine *rewards.Engine, logger *slog.Logger, authority [20]byte, args []string) error {
	fs := flag.NewFlagSet("distribute", flag.ExitOnError)
	epochFlag := fs.Uint64("epoch", 0, "Epoch the batch settles")
	fileFlag := fs.String("file", "", "Path to a JSON batch file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := os.ReadFile(*fileFlag)
	if err != nil {
		return err
	}
	var raw []batchEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid batch file: %w", err)
	}
	entries := make([]rewards.DistributionEntry, 0, len(raw))
	for _, item := range raw {
		affiliate, err := decodeAffiliate(item.Affiliate)
		if err != nil {
			return err
		}
		amount, err := parseAmount(item.Amount)
		if err != nil {
			return err
		}
		entries = append(entries, rewards.DistributionEntry{Affiliate: affiliate, Amount: amount})
	}
	receipt, err := engine.BatchDistribute(authority, *epochFlag, entries)
	if err != nil {
		return err
	}
	logger.Info("batch distributed",
		slog.Uint64("epoch", receipt.Epoch),
		slog.Int("entries", receipt.Entries),
		slog.String("total", receipt.Total.String()),
		slog.String("ref", receipt.Ref))
	return nil
}

func runClaim(engine *rewards.Engine, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	affiliateFlag := fs.String("affiliate", "", "Claiming affiliate address (bech32)")
	amountFlag := fs.String("amount", "", "Authorized amount")
	epochFlag := fs.Uint64("epoch", 0, "Epoch the claim settles")
	sigFlag := fs.String("signature", "", "Hex-encoded authority signature")
	if err := fs.Parse(args); err != nil {
		return err
	}
	affiliate, err := decodeAffiliate(*affiliateFlag)
	if err != nil {
		return err
	}
	amount, err := parseAmount(*amountFlag)
	if err != nil {
		return err
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(*sigFlag), "0x"))
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	receipt, err := engine.Claim(affiliate, amount, *epochFlag, sig)
	if err != nil {
		return err
	}
	logger.Info("claim settled",
		slog.Uint64("epoch", receipt.Epoch),
		slog.String("amount", receipt.Amount.String()),
		slog.String("ref", receipt.Ref))
	return nil
}

func runWithdraw(engine *rewards.Engine, logger *slog.Logger, authority [20]byte, args []string) error {
	fs := flag.NewFlagSet("withdraw", flag.ExitOnError)
	amountFlag := fs.String("amount", "", "Amount to withdraw to the authority")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := parseAmount(*amountFlag)
	if err != nil {
		return err
	}
	if err := engine.EmergencyWithdraw(authority, amount); err != nil {
		return err
	}
	logger.Warn("emergency withdrawal executed", slog.String("amount", amount.String()))
	return nil
}

// runSign produces a claim signature with a locally held authority key. The
// production signer service stays external; this exists for drills and tests.
func runSign(ledgerID string, args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyFlag := fs.String("key", "", "Hex-encoded authority private key")
	affiliateFlag := fs.String("affiliate", "", "Affiliate address (bech32)")
	amountFlag := fs.String("amount", "", "Authorized amount")
	epochFlag := fs.Uint64("epoch", 0, "Epoch the authorization covers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(*keyFlag), "0x"))
	if err != nil {
		return fmt.Errorf("invalid key hex: %w", err)
	}
	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return err
	}
	affiliate, err := decodeAffiliate(*affiliateFlag)
	if err != nil {
		return err
	}
	amount, err := parseAmount(*amountFlag)
	if err != nil {
		return err
	}
	sig, err := rewards.SignClaim(key, ledgerID, affiliate, amount, *epochFlag)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(sig))
	return nil
}

func runAudit(journal *rewards.Journal, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	fromFlag := fs.Uint64("from", 0, "Sequence number to start from")
	limitFlag := fs.Int("limit", 50, "Maximum records to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	records, next, err := journal.List(*fromFlag, *limitFlag)
	if err != nil {
		return err
	}
	for _, record := range records {
		addr := crypto.NewAddress(crypto.AffiliatePrefix, record.Affiliate[:])
		if err := printJSON(map[string]any{
			"seq":       record.Seq,
			"affiliate": addr.String(),
			"amount":    record.Amount.String(),
			"epoch":     record.Epoch,
			"path":      string(record.Path),
			"ref":       record.Ref,
			"emergency": record.Emergency,
			"stranded":  record.Stranded,
			"at":        record.RecordedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}); err != nil {
			return err
		}
	}
	if next != 0 {
		fmt.Fprintf(os.Stderr, "more records available from seq %d\n", next)
	}
	return nil
}

func printJSON(v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
