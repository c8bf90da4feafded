// MIT License
// Copyright (c) 2025 Cezame

// Two-factor registration/verification HTTP service entrypoint
// Point d'entrée du service HTTP d'enregistrement/vérification à deux facteurs
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/cezamee/grogu-xdp/internal/config"
	"github.com/cezamee/grogu-xdp/internal/tfa"
)

func main() {
	port := flag.Int("port", config.DefaultTFAPort, "TCP port to listen on")
	certFile := flag.String("cert", "internal/tfa/certs/server.crt", "TLS certificate path")
	keyFile := flag.String("key", "internal/tfa/certs/server.key", "TLS key path")
	plaintext := flag.Bool("insecure", false, "serve plain HTTP instead of HTTPS (development only)")
	smtpRelay := flag.String("smtp-relay", "smtp.gmail.com", "SMTP relay host used to email registration codes")
	smtpFrom := flag.String("smtp-from", "Mangonel <noreply@mangonel.com>", "From address for registration code emails")
	smtpCredentials := flag.String("smtp-credentials", "", "path to a JSON file with {email,password} relay credentials; empty disables email delivery")
	flag.Parse()

	svc := tfa.Run()

	var mailer tfa.Mailer
	if *smtpCredentials != "" {
		m, err := tfa.NewSMTPMailer(*smtpRelay, *smtpFrom, *smtpCredentials)
		if err != nil {
			log.Fatalf("tfa: %v", err)
		}
		mailer = m
	}

	mux := http.NewServeMux()
	tfa.NewHandler(svc, mailer).Mount(mux)

	addr := fmt.Sprintf(":%d", *port)
	if *plaintext {
		fmt.Printf("🔓 tfad listening on %s (plaintext)\n", addr)
		log.Fatal(http.ListenAndServe(addr, mux))
	}

	fmt.Printf("🔐 tfad listening on %s\n", addr)
	log.Fatal(http.ListenAndServeTLS(addr, *certFile, *keyFile, mux))
}
