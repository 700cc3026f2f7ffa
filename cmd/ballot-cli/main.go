package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/confidential-ballot/api/client"
	"github.com/vocdoni/confidential-ballot/crypto/signatures/ethereum"
	"github.com/vocdoni/confidential-ballot/log"
	"github.com/vocdoni/confidential-ballot/voter"
)

const defaultNode = "http://127.0.0.1:9090"

var (
	nodeURL      = flag.StringP("node", "u", defaultNode, "ballot node API URL")
	privKey      = flag.StringP("privkey", "k", "", "hex private key of the voter account")
	category     = flag.StringP("category", "c", "", "ballot category")
	value        = flag.Uint64P("value", "v", 0, "plain value to vote")
	participant  = flag.String("participant", "", "participant address (defaults to the voter account)")
	sendHint     = flag.Bool("hint", false, "attach the plain value hint to the vote")
	from         = flag.Uint64("from", 1, "first event sequence number")
	follow       = flag.BoolP("follow", "f", false, "keep following new events")
	pollInterval = flag.Duration("interval", 2*time.Second, "poll interval when following events")
	timeout      = flag.Duration("timeout", 2*time.Minute, "timeout of the command")
	logLevel     = flag.StringP("log.level", "l", "error", "log level (debug, info, warn, error)")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: ballot-cli <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  info        show the node identities\n")
	fmt.Fprintf(os.Stderr, "  vote        encrypt and submit --value for --category\n")
	fmt.Fprintf(os.Stderr, "  reveal      decrypt the ballot of --category\n")
	fmt.Fprintf(os.Stderr, "  status      report whether --participant voted for --category\n")
	fmt.Fprintf(os.Stderr, "  categories  list the categories --participant voted for\n")
	fmt.Fprintf(os.Stderr, "  events      list (or --follow) the ledger events\n")
	fmt.Fprintf(os.Stderr, "  stats       show the ledger counters\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	log.Init(*logLevel, "stderr", nil)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if !*follow {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, *timeout)
		defer cancelTimeout()
	}

	cli, err := client.New(*nodeURL)
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}
	if err := run(ctx, cli, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cli *client.HTTPclient, cmd string) error {
	switch cmd {
	case "info":
		info, err := cli.Info(ctx)
		if err != nil {
			return err
		}
		return printJSON(info)
	case "vote":
		v, err := newVoter(ctx, cli)
		if err != nil {
			return err
		}
		receipt, err := v.Vote(ctx, *category, *value)
		if err != nil {
			return err
		}
		return printJSON(receipt)
	case "reveal":
		v, err := newVoter(ctx, cli)
		if err != nil {
			return err
		}
		target := v.Address()
		if *participant != "" {
			if target, err = parseAddress(*participant); err != nil {
				return err
			}
		}
		plain, err := v.RevealFor(ctx, target, *category)
		if err != nil {
			return err
		}
		fmt.Println(plain)
		return nil
	case "status":
		target, err := targetAddress()
		if err != nil {
			return err
		}
		voted, err := cli.HasVoted(ctx, target, *category)
		if err != nil {
			return err
		}
		if !voted {
			fmt.Println("not voted")
			return nil
		}
		ballot, err := cli.Ballot(ctx, target, *category)
		if err != nil {
			return err
		}
		return printJSON(ballot)
	case "categories":
		target, err := targetAddress()
		if err != nil {
			return err
		}
		categories, err := cli.Categories(ctx, target)
		if err != nil {
			return err
		}
		return printJSON(categories)
	case "events":
		if *follow {
			for ev := range cli.Subscribe(ctx, *from, *pollInterval) {
				if err := printJSON(ev); err != nil {
					return err
				}
			}
			return nil
		}
		events, err := cli.Events(ctx, *from, 0)
		if err != nil {
			return err
		}
		return printJSON(events)
	case "stats":
		stats, err := cli.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// newVoter builds a voter for the configured account, bound to the ledger
// and authority the node reports.
func newVoter(ctx context.Context, cli *client.HTTPclient) (*voter.Voter, error) {
	if *privKey == "" {
		return nil, fmt.Errorf("--privkey is required")
	}
	signer, err := ethereum.NewSignerFromHex(*privKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	info, err := cli.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch node info: %w", err)
	}
	return voter.New(voter.Config{
		Contract:         info.Ledger,
		ChainID:          info.ChainID,
		AuthorityAddress: info.Authority,
		SendHint:         *sendHint,
	}, signer, cli, cli, cli)
}

// targetAddress returns --participant, or the address of --privkey.
func targetAddress() (common.Address, error) {
	if *participant != "" {
		return parseAddress(*participant)
	}
	if *privKey == "" {
		return common.Address{}, fmt.Errorf("--participant or --privkey is required")
	}
	signer, err := ethereum.NewSignerFromHex(*privKey)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid private key: %w", err)
	}
	return signer.Address(), nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
