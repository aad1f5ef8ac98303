// Command seccompared runs one side of a two-party comparison session:
// `serve` listens and plays Helper (key holder), `dial` connects and
// plays Owner. It replaces the teacher's single cgo/HTTP binary
// (notary.go) — no cgo, no HTTP, no browser CORS headers to set, just
// two real subcommands over a framed TCP connection.
package main

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/ironlatch/seccompare/config"
	"github.com/ironlatch/seccompare/crypto/paillier"
	"github.com/ironlatch/seccompare/enccompare"
	"github.com/ironlatch/seccompare/session"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatalln(err)
	}
}

func rootCmd() *cobra.Command {
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "seccompared",
		Short: "Run one side of a two-party encrypted-integer comparison session",
	}
	root.PersistentFlags().IntVar(&cfg.L, "bits", cfg.L, "bit length of compared integers")
	root.PersistentFlags().IntVar(&cfg.Lambda, "lambda", cfg.Lambda, "statistical security parameter")
	root.PersistentFlags().StringVar(&cfg.Comparator, "comparator", cfg.Comparator, "bit-level comparator: lsic or dgk")
	root.PersistentFlags().IntVar(&cfg.PaillierBits, "paillier-bits", cfg.PaillierBits, "Paillier modulus bit length")
	root.PersistentFlags().IntVar(&cfg.GMBits, "gm-bits", cfg.GMBits, "Goldwasser-Micali modulus bit length")

	root.AddCommand(serveCmd(&cfg), dialCmd(&cfg))
	return root
}

func serveCmd(cfg *config.Session) *cobra.Command {
	var argmaxMode bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Listen for one Owner connection and play Helper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Role = config.RoleHelper
			if cfg.ListenAddr == "" {
				return fmt.Errorf("seccompared: --listen is required for serve")
			}
			h, err := session.ListenHelper(*cfg, rand.Reader)
			if err != nil {
				return err
			}
			defer h.Close()

			if argmaxMode {
				return h.HandleArgmax()
			}
			return h.HandleCompare(enccompare.Forward)
		},
	}
	cmd.Flags().StringVar(&cfg.ListenAddr, "listen", "", "address to listen on, e.g. :9443")
	cmd.Flags().BoolVar(&argmaxMode, "argmax", false, "answer an argmax session instead of a single compare")
	return cmd
}

func dialCmd(cfg *config.Session) *cobra.Command {
	var argmaxMode bool
	var a, b int64
	var values []int64

	cmd := &cobra.Command{
		Use:   "dial",
		Short: "Connect to a Helper and play Owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Role = config.RoleOwner
			if cfg.DialAddr == "" {
				return fmt.Errorf("seccompared: --connect is required for dial")
			}
			o, err := session.DialOwner(*cfg, rand.Reader)
			if err != nil {
				return err
			}
			defer o.Close()

			pub := o.PublicKey()
			if argmaxMode {
				cts := make([]*paillier.CtInt, len(values))
				for i, v := range values {
					cts[i] = pub.EncryptConst(big.NewInt(v))
				}
				idx, err := o.Argmax(cts)
				if err != nil {
					return err
				}
				fmt.Println(idx)
				return nil
			}

			ca := pub.EncryptConst(big.NewInt(a))
			cb := pub.EncryptConst(big.NewInt(b))
			bit, err := o.Compare(ca, cb, enccompare.Forward)
			if err != nil {
				return err
			}
			fmt.Println(bit)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.DialAddr, "connect", "", "Helper address to connect to, e.g. 127.0.0.1:9443")
	cmd.Flags().BoolVar(&argmaxMode, "argmax", false, "run argmax over --values instead of a single compare")
	cmd.Flags().Int64Var(&a, "a", 0, "left operand for compare mode")
	cmd.Flags().Int64Var(&b, "b", 0, "right operand for compare mode")
	cmd.Flags().Int64SliceVar(&values, "values", nil, "candidate values for argmax mode")
	return cmd
}
