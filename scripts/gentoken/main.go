// gentoken mints a signed bearer token for one gateway operator.
//
// Usage (run from the repo root):
//
//	EXPOGATE_JWT_SECRET=... EXPOGATE_OPERATOR_KEY_HASH=... \
//	  go run scripts/gentoken/main.go -id op-42 -name "Ana Torres" -role DOOR_STAFF -key <operator-key>
//
// The secret must match the one the server was started with. When
// EXPOGATE_OPERATOR_KEY_HASH is set, the -key flag must verify against it;
// this keeps token minting gated behind the shared operator key even on
// hosts where the JWT secret leaked into an env file.
//
// Use -hash-key to print the argon2id hash of a new operator key instead of
// minting a token.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/expokossodo/expogate/internal/auth"
	"github.com/expokossodo/expogate/internal/model"
)

func main() {
	id := flag.String("id", "", "principal identifier (required)")
	name := flag.String("name", "", "operator display name (required)")
	roleStr := flag.String("role", string(model.RoleReader), "role: READER, DOOR_STAFF, or COORDINATOR")
	ttl := flag.Duration("ttl", 30*time.Minute, "token lifetime")
	key := flag.String("key", "", "operator key (required when EXPOGATE_OPERATOR_KEY_HASH is set)")
	hashKey := flag.String("hash-key", "", "print the argon2id hash of this key and exit")
	flag.Parse()

	if *hashKey != "" {
		encoded, err := auth.HashOperatorKey(*hashKey)
		if err != nil {
			fatal("hash key: %v", err)
		}
		fmt.Println(encoded)
		return
	}

	_ = godotenv.Load()

	secret := os.Getenv("EXPOGATE_JWT_SECRET")
	if secret == "" {
		fatal("EXPOGATE_JWT_SECRET is not set")
	}

	if encoded := os.Getenv("EXPOGATE_OPERATOR_KEY_HASH"); encoded != "" {
		ok, err := auth.VerifyOperatorKey(*key, encoded)
		if err != nil {
			fatal("verify operator key: %v", err)
		}
		if !ok {
			fatal("operator key does not match EXPOGATE_OPERATOR_KEY_HASH")
		}
	}

	if *id == "" || *name == "" {
		fatal("-id and -name are required")
	}
	role, err := model.ParseRole(*roleStr)
	if err != nil {
		fatal("%v", err)
	}

	mgr, err := auth.NewManager(secret, *ttl)
	if err != nil {
		fatal("auth: %v", err)
	}

	token, expiresAt, err := mgr.IssueToken(*id, *name, role)
	if err != nil {
		fatal("issue token: %v", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires: %s\n", expiresAt.UTC().Format(time.RFC3339))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
