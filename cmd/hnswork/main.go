// Command hnswork inspects and solves getwork miner headers the way an
// external miner does, and reads the accepted work journal.
package main

import (
	"encoding/hex"
	"io"
	"math"
	"math/big"
	"net/url"
	"os"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/davecgh/go-spew/spew"
	"github.com/hnsnode/hnsnode/errors"
	"github.com/hnsnode/hnsnode/model"
	"github.com/hnsnode/hnsnode/settings"
	"github.com/hnsnode/hnsnode/stores/acceptedwork"
	"github.com/hnsnode/hnsnode/ulogger"
	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	tSettings := settings.NewSettings()
	logger := ulogger.New("hnswork", ulogger.WithLevel(tSettings.LogLevel), ulogger.WithWriter(os.Stderr), ulogger.WithPretty(tSettings.PrettyLogs))

	if err := newApp(logger, tSettings, os.Stdout).Run(os.Args); err != nil {
		logger.Fatalf("%v", err)
	}
}

func newApp(logger ulogger.Logger, tSettings *settings.Settings, out io.Writer) *cli.App {
	return &cli.App{
		Name:      "hnswork",
		Usage:     "Decode, hash and solve getwork miner headers",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:  "hash",
				Usage: "Print every intermediate of the proof of work hash",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Usage: "256 byte miner header as hex", Required: true},
					&cli.StringFlag{Name: "mask", Usage: "32 byte mask as hex (default all zero)"},
				},
				Action: func(c *cli.Context) error {
					return hashCommand(c.App.Writer, c.String("data"), c.String("mask"))
				},
			},
			{
				Name:  "decode",
				Usage: "Dump the fields of a miner header",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Usage: "256 byte miner header as hex", Required: true},
				},
				Action: func(c *cli.Context) error {
					header, err := model.NewMinerHeaderFromString(c.String("data"))
					if err != nil {
						return err
					}

					dumper := &spew.ConfigState{Indent: " ", DisableMethods: true, DisablePointerAddresses: true}
					dumper.Fdump(c.App.Writer, header)

					return nil
				},
			},
			{
				Name:  "mine",
				Usage: "Search the nonce space for a header that meets the target",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Usage: "256 byte miner header as hex", Required: true},
					&cli.StringFlag{Name: "target", Usage: "32 byte big-endian target as hex", Required: true},
					&cli.StringFlag{Name: "mask", Usage: "32 byte mask as hex (default all zero)"},
					&cli.Uint64Flag{Name: "max-nonce", Usage: "last nonce to try", Value: math.MaxUint32},
				},
				Action: func(c *cli.Context) error {
					return mineCommand(logger, c.App.Writer, c.String("data"), c.String("target"), c.String("mask"), c.Uint64("max-nonce"))
				},
			},
			{
				Name:  "journal",
				Usage: "List recently accepted work",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "store", Usage: "accepted work store url (default from settings)"},
					&cli.IntFlag{Name: "limit", Usage: "number of records", Value: 20},
				},
				Action: func(c *cli.Context) error {
					return journalCommand(c, logger, tSettings, c.App.Writer, c.String("store"), c.Int("limit"))
				},
			},
		},
	}
}

type hashOutput struct {
	Nonce      uint32 `json:"nonce"`
	Time       uint64 `json:"time"`
	PrevBlock  string `json:"prevBlock"`
	Prehead    string `json:"prehead"`
	Subhead    string `json:"subhead"`
	SubHash    string `json:"subHash"`
	MaskHash   string `json:"maskHash"`
	CommitHash string `json:"commitHash"`
	Left       string `json:"left"`
	Right      string `json:"right"`
	ShareHash  string `json:"shareHash"`
	PowHash    string `json:"powHash"`
}

type mineOutput struct {
	Nonce uint32 `json:"nonce"`
	Data  string `json:"data"`
	Hash  string `json:"hash"`
}

func hashCommand(out io.Writer, dataHex, maskHex string) error {
	header, err := model.NewMinerHeaderFromString(dataHex)
	if err != nil {
		return err
	}

	mask, err := parseHash("mask", maskHex)
	if err != nil {
		return err
	}

	trace, err := header.Trace(mask)
	if err != nil {
		return err
	}

	return writeJSON(out, &hashOutput{
		Nonce:      header.Nonce,
		Time:       header.Time,
		PrevBlock:  hex.EncodeToString(header.PrevBlock[:]),
		Prehead:    hex.EncodeToString(trace.Prehead),
		Subhead:    hex.EncodeToString(trace.Subhead),
		SubHash:    hex.EncodeToString(trace.SubHash[:]),
		MaskHash:   hex.EncodeToString(trace.MaskHash[:]),
		CommitHash: hex.EncodeToString(trace.CommitHash[:]),
		Left:       hex.EncodeToString(trace.Left),
		Right:      hex.EncodeToString(trace.Right[:]),
		ShareHash:  hex.EncodeToString(trace.ShareHash[:]),
		PowHash:    hex.EncodeToString(trace.PowHash[:]),
	})
}

func mineCommand(logger ulogger.Logger, out io.Writer, dataHex, targetHex, maskHex string, maxNonce uint64) error {
	header, err := model.NewMinerHeaderFromString(dataHex)
	if err != nil {
		return err
	}

	targetHash, err := parseHash("target", targetHex)
	if err != nil {
		return err
	}

	target := new(big.Int).SetBytes(targetHash[:])

	mask, err := parseHash("mask", maskHex)
	if err != nil {
		return err
	}

	if maxNonce > math.MaxUint32 {
		maxNonce = math.MaxUint32
	}

	for nonce := uint64(header.Nonce); nonce <= maxNonce; nonce++ {
		header.Nonce = uint32(nonce) //nolint:gosec

		hash, err := header.PowHash(mask)
		if err != nil {
			return err
		}

		if !model.CheckProofOfWork(hash, target) {
			continue
		}

		data, err := header.Bytes()
		if err != nil {
			return err
		}

		logger.Infof("[hnswork] found nonce %d", header.Nonce)

		return writeJSON(out, &mineOutput{
			Nonce: header.Nonce,
			Data:  hex.EncodeToString(data),
			Hash:  hex.EncodeToString(hash[:]),
		})
	}

	return errors.NewNotFoundError("no nonce up to %d meets the target", maxNonce)
}

func journalCommand(c *cli.Context, logger ulogger.Logger, tSettings *settings.Settings, out io.Writer, storeURL string, limit int) error {
	u := tSettings.GetWork.AcceptedWorkStore

	if storeURL != "" {
		parsed, err := url.Parse(storeURL)
		if err != nil {
			return errors.NewConfigurationError("invalid store url %q", storeURL, err)
		}

		u = parsed
	}

	store, err := acceptedwork.New(logger, u, tSettings.DataFolder)
	if err != nil {
		return err
	}

	defer func() {
		_ = store.Close(c.Context)
	}()

	records, err := store.List(c.Context, limit)
	if err != nil {
		return err
	}

	for _, w := range records {
		if err = writeJSON(out, map[string]interface{}{
			"attemptId": w.AttemptID,
			"hash":      hex.EncodeToString(w.BlockHash[:]),
			"prevBlock": hex.EncodeToString(w.PrevBlock[:]),
			"height":    w.Height,
			"fee":       w.Fee,
			"txCount":   w.TxCount,
			"created":   w.CreatedAt.UTC(),
		}); err != nil {
			return err
		}
	}

	return nil
}

func parseHash(name, s string) (chainhash.Hash, error) {
	var h chainhash.Hash

	if s == "" {
		return h, nil
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return h, errors.NewFormatError("%s is not valid hex", name, err)
	}

	if len(b) != chainhash.HashSize {
		return h, errors.NewInvalidLengthError("%s should be %d bytes, got %d", name, chainhash.HashSize, len(b))
	}

	copy(h[:], b)

	return h, nil
}

func writeJSON(out io.Writer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.NewProcessingError("could not encode output", err)
	}

	_, err = out.Write(append(b, '\n'))

	return err
}
