// Command passwd prints a credential file line with a bcrypt-hashed secret.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/andy6609/chat-relay/internal/credential"
)

func main() {
	user := flag.String("user", "", "username")
	flag.Parse()

	if *user == "" || strings.Contains(*user, ":") {
		fmt.Fprintln(os.Stderr, "usage: passwd -user <name>  (password is read from stdin)")
		os.Exit(2)
	}

	in := bufio.NewScanner(os.Stdin)
	if !in.Scan() {
		fmt.Fprintln(os.Stderr, "no password given")
		os.Exit(1)
	}
	hash, err := credential.HashSecret(in.Text())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("%s:%s\n", *user, hash)
}
