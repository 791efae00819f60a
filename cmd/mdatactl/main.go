package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/safeclient/mdata-ffi/engine"
	"github.com/safeclient/mdata-ffi/mdata"
	"github.com/safeclient/mdata-ffi/wire"
)

func main() {
	var (
		layouts     = flag.Bool("layouts", false, "Print the wire struct layouts and exit")
		decode      = flag.Bool("decode", false, "Decode a serialised info blob")
		hexIn       = flag.String("hex", "", "Hex-encoded input (default: read stdin)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *layouts {
		printLayouts()
		return
	}

	if *decode {
		if err := runDecode(*hexIn); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintln(os.Stderr, "Usage: mdatactl -layouts")
	fmt.Fprintln(os.Stderr, "       mdatactl -decode [-hex <bytes>]")
	fmt.Fprintln(os.Stderr, "       mdatactl -i  (interactive mode)")
	os.Exit(1)
}

func printLayouts() {
	fmt.Println("Wire layouts (32-bit little-endian ABI):")
	fmt.Println()
	rows := []struct {
		name string
		size int
		desc string
	}{
		{"Info", wire.InfoSize, "name[32] type_tag:u64 enc flags + key/nonce pairs"},
		{"PermissionSet", wire.PermSetSize, "read insert update delete manage (u8 each)"},
		{"UserPermissionSet", wire.UserPermSize, "user:u64 perms[5] + pad"},
		{"Key", wire.KeySize, "ptr:u32 len:u32"},
		{"Value", wire.ValueSize, "ptr:u32 len:u32 version:u64"},
		{"Entry", wire.EntrySize, "key:Key value:Value"},
		{"Metadata", wire.MetaSize, "name ptr+len, description ptr+len"},
	}
	for _, r := range rows {
		fmt.Printf("  %-20s %4d bytes  %s\n", r.name, r.size, r.desc)
	}
	fmt.Println()
	fmt.Printf("Limits: payload %d bytes, record count %d\n", wire.MaxPayloadSize, wire.MaxRecordCount)
}

func runDecode(hexIn string) error {
	var raw []byte
	if hexIn != "" {
		var err error
		raw, err = hex.DecodeString(strings.TrimSpace(hexIn))
		if err != nil {
			return fmt.Errorf("decode hex: %w", err)
		}
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		raw, err = hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return fmt.Errorf("decode hex: %w", err)
		}
	}

	ctx := context.Background()
	d := engine.NewLocalDispatcher()
	defer d.Close(ctx)

	client := mdata.NewClient(d)
	info, err := client.InfoDeserialise(ctx, raw)
	if err != nil {
		return fmt.Errorf("deserialise: %w", err)
	}

	fmt.Printf("name:       %x\n", info.Name)
	fmt.Printf("type_tag:   %d\n", info.TypeTag)
	fmt.Printf("encrypted:  %v\n", info.HasEncInfo)
	if info.HasEncInfo {
		fmt.Printf("enc_key:    %x\n", info.EncKey)
		fmt.Printf("enc_nonce:  %x\n", info.EncNonce)
	}
	fmt.Printf("rotating:   %v\n", info.HasNewEncInfo)
	if info.HasNewEncInfo {
		fmt.Printf("new_key:    %x\n", info.NewEncKey)
		fmt.Printf("new_nonce:  %x\n", info.NewEncNonce)
	}
	return nil
}
