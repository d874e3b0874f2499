package main

import (
	"fmt"
	"log"
	"os"

	"rostera.com.au/rostera/security"
)

func main() {
	secret := os.Getenv("ROSTERA_SIGNING_SECRET")
	if secret == "" {
		log.Fatal("ROSTERA_SIGNING_SECRET is not set")
	}

	identity := &security.RosteraIdentity{
		Id:       1,
		UserName: "ops",
		Provider: "cli",
	}

	token, err := security.CreateIdentityToken(identity, secret, 24*60*60)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
