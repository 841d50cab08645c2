package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var hashCost int

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Print the bcrypt hash of an API token for --auth-token-hash",
	Long:  "Print the bcrypt hash of an API token. The token is read from stdin when not given as an argument.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHashToken,
}

func init() {
	hashTokenCmd.Flags().IntVar(&hashCost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	rootCmd.AddCommand(hashTokenCmd)
}

func runHashToken(cmd *cobra.Command, args []string) error {
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(err, "read token")
		}
		token = strings.TrimRight(line, "\r\n")
	}
	if token == "" {
		return errors.New("token must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), hashCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}
