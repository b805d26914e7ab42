package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/client"
	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/envelope"
	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/integrity"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "encrypt":
		err = cmdEncrypt(os.Args[2:])
	case "decrypt":
		err = cmdDecrypt(os.Args[2:])
	case "sign":
		err = cmdSign(os.Args[2:])
	case "verify":
		err = cmdVerify(os.Args[2:])
	case "put":
		err = cmdPut(os.Args[2:])
	case "get":
		err = cmdGet(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: securectl <command> [flags]

commands:
  encrypt  seal a file into a binary envelope
  decrypt  open a binary envelope file
  sign     compute a response signature for a body file
  verify   check a response signature against a body file
  put      upload a file to a gateway blob store
  get      download a blob from a gateway`)
}

func cmdEncrypt(args []string) error {
	fs := pflag.NewFlagSet("encrypt", pflag.ExitOnError)
	in := fs.String("in", "", "input file")
	out := fs.String("out", "", "output file")
	token := fs.String("token", "", "bearer credential")
	_ = fs.Parse(args)
	if *in == "" || *out == "" || *token == "" {
		return fmt.Errorf("encrypt: -in, -out and -token are required")
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	sealed, err := envelope.EncryptBinary(data, *token)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, sealed, 0o600); err != nil {
		return err
	}
	fmt.Printf("sealed %d bytes -> %d bytes (compressed=%v)\n", len(data), len(sealed), sealed[1] == 1)
	return nil
}

func cmdDecrypt(args []string) error {
	fs := pflag.NewFlagSet("decrypt", pflag.ExitOnError)
	in := fs.String("in", "", "input envelope file")
	out := fs.String("out", "", "output file")
	token := fs.String("token", "", "bearer credential")
	_ = fs.Parse(args)
	if *in == "" || *out == "" || *token == "" {
		return fmt.Errorf("decrypt: -in, -out and -token are required")
	}

	sealed, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	data, err := envelope.DecryptBinary(sealed, *token)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, data, 0o600)
}

func cmdSign(args []string) error {
	fs := pflag.NewFlagSet("sign", pflag.ExitOnError)
	body := fs.String("body", "", "body file")
	status := fs.Int("status", 200, "response status")
	ns := fs.String("ns", integrity.DefaultNamespace, "signature namespace")
	keyphrase := fs.String("keyphrase", "", "shared keyphrase")
	_ = fs.Parse(args)
	if *body == "" || *keyphrase == "" {
		return fmt.Errorf("sign: -body and -keyphrase are required")
	}

	raw, err := os.ReadFile(*body)
	if err != nil {
		return err
	}
	signer, err := integrity.New(*ns, *keyphrase)
	if err != nil {
		return err
	}
	fmt.Println(signer.SignResponse(*status, raw))
	return nil
}

func cmdVerify(args []string) error {
	fs := pflag.NewFlagSet("verify", pflag.ExitOnError)
	body := fs.String("body", "", "body file")
	status := fs.Int("status", 200, "response status")
	ns := fs.String("ns", integrity.DefaultNamespace, "signature namespace")
	keyphrase := fs.String("keyphrase", "", "shared keyphrase")
	sig := fs.String("sig", "", "signature to check")
	_ = fs.Parse(args)
	if *body == "" || *keyphrase == "" || *sig == "" {
		return fmt.Errorf("verify: -body, -keyphrase and -sig are required")
	}

	raw, err := os.ReadFile(*body)
	if err != nil {
		return err
	}
	signer, err := integrity.New(*ns, *keyphrase)
	if err != nil {
		return err
	}
	if err := signer.VerifyResponse(*status, raw, *sig); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func gatewayClient(url, serviceKey, keyphrase string) (*client.Client, error) {
	return client.New(client.Config{
		BaseURL:    url,
		ServiceKey: serviceKey,
		Keyphrase:  keyphrase,
		Timeout:    30 * time.Second,
		Integrity: client.IntegrityPolicy{
			Enabled:         keyphrase != "",
			SignRequests:    keyphrase != "",
			VerifyResponses: keyphrase != "",
		},
		Logger: zap.NewNop(),
	})
}

func cmdPut(args []string) error {
	fs := pflag.NewFlagSet("put", pflag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "gateway base URL")
	serviceKey := fs.String("service-key", "", "gateway service key")
	keyphrase := fs.String("keyphrase", "", "shared integrity keyphrase")
	token := fs.String("token", "", "bearer credential")
	in := fs.String("in", "", "file to upload")
	_ = fs.Parse(args)
	if *serviceKey == "" || *token == "" || *in == "" {
		return fmt.Errorf("put: -service-key, -token and -in are required")
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	c, err := gatewayClient(*url, *serviceKey, *keyphrase)
	if err != nil {
		return err
	}
	resp, err := c.Do(context.Background(), http.MethodPost, "/v1/blobs",
		client.WithBearer(*token),
		client.WithBody(data, "application/octet-stream"),
	)
	if err != nil {
		return err
	}
	if resp.Status != http.StatusCreated {
		return fmt.Errorf("gateway returned %d: %s", resp.Status, resp.Raw)
	}
	fmt.Printf("%s\n", resp.Raw)
	return nil
}

func cmdGet(args []string) error {
	fs := pflag.NewFlagSet("get", pflag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "gateway base URL")
	serviceKey := fs.String("service-key", "", "gateway service key")
	keyphrase := fs.String("keyphrase", "", "shared integrity keyphrase")
	token := fs.String("token", "", "bearer credential")
	id := fs.String("id", "", "blob id")
	out := fs.String("out", "", "output file")
	_ = fs.Parse(args)
	if *serviceKey == "" || *token == "" || *id == "" || *out == "" {
		return fmt.Errorf("get: -service-key, -token, -id and -out are required")
	}

	c, err := gatewayClient(*url, *serviceKey, *keyphrase)
	if err != nil {
		return err
	}
	resp, err := c.Do(context.Background(), http.MethodGet, "/v1/blobs/"+*id,
		client.WithBearer(*token),
	)
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("gateway returned %d: %s", resp.Status, resp.Raw)
	}
	return os.WriteFile(*out, resp.Raw, 0o600)
}
