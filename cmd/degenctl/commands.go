package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/Degen-Markets/degen-markets-solana/internal/crypto"
	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/server/middleware"
)

// Environment fallbacks for the key flags.
const (
	envSeed     = "DEGENCTL_SEED"
	envKeyfile  = "DEGENCTL_KEYFILE"
	envPassword = "DEGENCTL_PASSWORD"
	envURL      = "DEGENCTL_URL"
	envProgram  = "DEGENCTL_PROGRAM_ID"
)

type keyFlags struct {
	seed    string
	keyfile string
}

func (k *keyFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&k.seed, "seed", os.Getenv(envSeed), "hex ed25519 seed")
	fs.StringVar(&k.keyfile, "keyfile", os.Getenv(envKeyfile), "encrypted keyfile written by keygen")
}

func (k *keyFlags) load() (*crypto.KeyPair, error) {
	cfg := crypto.KeyConfig{RawSeed: k.seed, KeyfilePath: k.keyfile}
	if cfg.RawSeed == "" && cfg.KeyfilePath != "" {
		pw, err := password("Keyfile password")
		if err != nil {
			return nil, err
		}
		cfg.Password = pw
	}
	return crypto.LoadKeyPair(cfg)
}

// password reads DEGENCTL_PASSWORD or prompts with masked input.
func password(prompt string) (string, error) {
	if pw := os.Getenv(envPassword); pw != "" {
		return pw, nil
	}
	pw, err := pterm.DefaultInteractiveTextInput.WithDefaultText(prompt).WithMask("*").Show()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if pw == "" {
		return "", errors.New("password must not be empty")
	}
	return pw, nil
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	out := fs.String("out", "", "write an encrypted keyfile instead of printing the seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kp, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	if *out == "" {
		pterm.Warning.Println("seed printed in clear; pass -out to encrypt it")
		return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"address", "seed"},
			{kp.Address().String(), hex.EncodeToString(kp.Seed())},
		}).Render()
	}

	pw, err := password("New keyfile password")
	if err != nil {
		return err
	}
	data, err := crypto.EncryptKeyPair(kp, pw)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("write keyfile: %w", err)
	}
	pterm.Success.Printfln("wrote %s for %s", *out, kp.Address())
	return nil
}

func runAddress(args []string) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	var keys keyFlags
	keys.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	kp, err := keys.load()
	if err != nil {
		return err
	}
	pterm.Println(kp.Address().String())
	return nil
}

func runDigest(args []string) error {
	d, err := digestFor(args)
	if err != nil {
		return err
	}
	pterm.Println(d.String())
	return nil
}

// digestFor computes the title digest named by args.
func digestFor(args []string) (domain.Digest, error) {
	switch {
	case len(args) == 2 && args[0] == "pool":
		return crypto.Hash(crypto.PoolTitleInput(args[1])), nil
	case len(args) == 3 && args[0] == "option":
		pool, err := domain.ParseAddress(args[1])
		if err != nil {
			return domain.Digest{}, err
		}
		return crypto.Hash(crypto.OptionTitleInput(pool, args[2])), nil
	}
	return domain.Digest{}, errors.New("usage: digest pool <title> | digest option <pool> <title>")
}

func runDerive(args []string) error {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	program := fs.String("program", os.Getenv(envProgram), "ledger program id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	programID, err := domain.ParseAddress(*program)
	if err != nil {
		return fmt.Errorf("program id: %w", err)
	}
	addr, err := deriveFor(crypto.NewDeriver(programID), fs.Args())
	if err != nil {
		return err
	}
	pterm.Println(addr.String())
	return nil
}

// deriveFor resolves the record address named by args under d.
func deriveFor(d *crypto.Deriver, args []string) (domain.Address, error) {
	switch {
	case len(args) == 2 && args[0] == "pool":
		return d.PoolAddress(crypto.Hash(crypto.PoolTitleInput(args[1])))
	case len(args) == 3 && args[0] == "option":
		pool, err := domain.ParseAddress(args[1])
		if err != nil {
			return domain.Address{}, err
		}
		return d.OptionAddress(crypto.Hash(crypto.OptionTitleInput(pool, args[2])))
	case len(args) == 3 && args[0] == "entry":
		option, err := domain.ParseAddress(args[1])
		if err != nil {
			return domain.Address{}, err
		}
		participant, err := domain.ParseAddress(args[2])
		if err != nil {
			return domain.Address{}, err
		}
		return d.Derive(option, participant)
	}
	return domain.Address{}, errors.New("usage: derive pool <title> | option <pool> <title> | entry <option> <participant>")
}

func runCall(args []string) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	base := fs.String("url", envOr(envURL, "http://localhost:8000"), "API base URL")
	timeout := fs.Duration("timeout", 15*time.Second, "request timeout")
	var keys keyFlags
	keys.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 || len(rest) > 3 {
		return errors.New("usage: call <METHOD> <PATH> [json-body]")
	}

	kp, err := keys.load()
	if err != nil {
		return err
	}
	var body []byte
	if len(rest) == 3 {
		body = []byte(rest[2])
		if !json.Valid(body) {
			return errors.New("body is not valid JSON")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	req, err := signedRequest(ctx, kp, strings.ToUpper(rest[0]), *base, rest[1], body, time.Now())
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("call: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("call: read response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	if resp.StatusCode >= 400 {
		pterm.Error.Printfln("%s (request %s)", resp.Status, resp.Header.Get(middleware.HeaderRequestID))
	} else {
		pterm.Success.Println(resp.Status)
	}
	pterm.Println(pretty.String())
	return nil
}

// signedRequest builds a request to base+path carrying the signature
// headers the API verifies.
func signedRequest(ctx context.Context, kp *crypto.KeyPair, method, base, path string, body []byte, now time.Time) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(base, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("call: build request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	// The signature covers the path without the query string.
	ts := now.Unix()
	req.Header.Set(middleware.HeaderSigner, kp.Address().String())
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderSignature, kp.SignRequest(method, req.URL.Path, ts, body))
	return req, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
