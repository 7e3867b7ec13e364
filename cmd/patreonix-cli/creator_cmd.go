package main

import (
	"fmt"
	"io"
)

func runInit(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("init", stderr)
	keyPath := fs.String("key", "", "keystore of the registry authority")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	key, ok := signerFrom(stderr, *keyPath)
	if !ok {
		return 1
	}
	return invoke(stdout, stderr, "registry_initialize", key, map[string]interface{}{}, false)
}

func runCreatorCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, creatorUsage())
		return 1
	}
	switch args[0] {
	case "register":
		return runCreatorRegister(args[1:], stdout, stderr)
	case "update":
		return runCreatorUpdate(args[1:], stdout, stderr)
	case "get":
		return runCreatorGet(args[1:], stdout, stderr)
	case "deactivate":
		return runCreatorAction("creator deactivate", "registry_deactivateCreator", args[1:], stdout, stderr)
	case "reactivate":
		return runCreatorAction("creator reactivate", "registry_reactivateCreator", args[1:], stdout, stderr)
	case "support":
		return runCreatorAction("creator support", "registry_incrementSupporters", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown creator subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, creatorUsage())
		return 1
	}
}

func runCreatorRegister(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("creator register", stderr)
	keyPath := fs.String("key", "", "keystore of the identity registering")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "contact e-mail (private)")
	bio := fs.String("bio", "", "short biography")
	avatar := fs.String("avatar", "", "avatar URL")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	trimmedName, ok := requireFlag(stderr, "name", *name)
	if !ok {
		return 1
	}
	payload := map[string]interface{}{"name": trimmedName}
	for flagName, value := range map[string]*string{"email": email, "bio": bio, "avatar": avatar} {
		if flagProvided(fs, flagName) {
			payload[flagName] = *value
		}
	}
	key, ok := signerFrom(stderr, *keyPath)
	if !ok {
		return 1
	}
	return invoke(stdout, stderr, "registry_registerCreator", key, payload, false)
}

func runCreatorUpdate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("creator update", stderr)
	keyPath := fs.String("key", "", "keystore of the creator authority")
	creatorAddr := fs.String("creator", "", "creator record address")
	name := fs.String("name", "", "new display name")
	email := fs.String("email", "", "new contact e-mail")
	bio := fs.String("bio", "", "new biography")
	avatar := fs.String("avatar", "", "new avatar URL")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "creator", *creatorAddr)
	if !ok {
		return 1
	}
	payload := map[string]interface{}{"creator": addr}
	changed := 0
	for flagName, value := range map[string]*string{"name": name, "email": email, "bio": bio, "avatar": avatar} {
		if flagProvided(fs, flagName) {
			payload[flagName] = *value
			changed++
		}
	}
	if changed == 0 {
		fmt.Fprintln(stderr, "Error: at least one of --name, --email, --bio or --avatar is required")
		return 1
	}
	key, ok := signerFrom(stderr, *keyPath)
	if !ok {
		return 1
	}
	return invoke(stdout, stderr, "registry_updateCreator", key, payload, false)
}

// runCreatorGet prints the public profile, or the full record when --key
// proves ownership.
func runCreatorGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("creator get", stderr)
	keyPath := fs.String("key", "", "keystore of the creator authority (includes private fields)")
	creatorAddr := fs.String("creator", "", "creator record address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "creator", *creatorAddr)
	if !ok {
		return 1
	}
	payload := map[string]interface{}{"creator": addr}
	if *keyPath == "" {
		return invoke(stdout, stderr, "registry_getCreatorPublic", nil, payload, false)
	}
	key, ok := signerFrom(stderr, *keyPath)
	if !ok {
		return 1
	}
	return invoke(stdout, stderr, "registry_getCreator", key, payload, false)
}

func runCreatorAction(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr)
	keyPath := fs.String("key", "", "keystore of the signer")
	creatorAddr := fs.String("creator", "", "creator record address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "creator", *creatorAddr)
	if !ok {
		return 1
	}
	key, ok := signerFrom(stderr, *keyPath)
	if !ok {
		return 1
	}
	return invoke(stdout, stderr, method, key, map[string]interface{}{"creator": addr}, false)
}

func creatorUsage() string {
	return `Usage: patreonix-cli creator <subcommand> [flags]
  register    --key FILE --name NAME [--email E] [--bio B] [--avatar URL]
  update      --key FILE --creator ADDR [--name] [--email] [--bio] [--avatar]
  get         --creator ADDR [--key FILE]
  deactivate  --key FILE --creator ADDR
  reactivate  --key FILE --creator ADDR
  support     --key FILE --creator ADDR`
}
