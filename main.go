package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tenorlang/tenor/source/hub"
	"github.com/tenorlang/tenor/source/initializer"
	"github.com/tenorlang/tenor/source/repl"
	"github.com/tenorlang/tenor/source/serve"
	"github.com/tenorlang/tenor/source/service"
	"github.com/tenorlang/tenor/source/text"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "-v", "--version":
			fmt.Println("Tenor version " + text.VERSION)
			return
		case "-h", "--help":
			fmt.Print(text.HELP)
			return
		case "elaborate":
			elaborate(os.Args[2:])
			return
		case "eval":
			evalOnce(os.Args[2:])
			return
		case "serve":
			runServer(os.Args[2:])
			return
		}
	}

	// With no command, or with the 'hub' or 'run' commands, we start the
	// interactive hub; anything after 'hub' is run as a first command.

	fmt.Print(text.Logo())
	hb := hub.New(os.Stdin, os.Stdout)
	quit := false
	if len(os.Args) > 2 && os.Args[1] == "hub" {
		quit = hb.Do("hub " + strings.Join(os.Args[2:], " "))
	}
	if len(os.Args) == 3 && os.Args[1] == "run" {
		hb.Do("hub run " + os.Args[2])
	}
	if !quit {
		repl.Start(hb, os.Stdin, os.Stdout)
	}
}

func elaborate(args []string) {
	if len(args) != 1 {
		fmt.Fprint(os.Stderr, "The 'elaborate' command needs the name of a contract file.\n")
		os.Exit(2)
	}
	bundle, e := initializer.Elaborate(args[0])
	if e != nil {
		fmt.Fprintln(os.Stderr, text.Red("error")+": "+e.Message)
		os.Exit(1)
	}
	os.Stdout.Write(bundle)
	fmt.Println()
}

// evalOnce elaborates a contract file, evaluates one facts document
// against it, and prints the verdicts.
func evalOnce(args []string) {
	if len(args) != 2 {
		fmt.Fprint(os.Stderr, "The 'eval' command needs a contract file and a facts document.\n")
		os.Exit(2)
	}
	sv := service.NewService()
	lc, e := sv.LoadFile(args[0])
	if e != nil {
		fmt.Fprintln(os.Stderr, text.Red("error")+": "+e.Message)
		os.Exit(1)
	}
	facts, parseErr := service.ParseFacts([]byte(args[1]))
	if parseErr != nil {
		fmt.Fprintln(os.Stderr, text.Red("error")+": "+parseErr.Error())
		os.Exit(1)
	}
	explained, evalErr := sv.Explain(lc.Id, facts)
	if evalErr != nil {
		fmt.Fprintln(os.Stderr, text.Red("error")+": "+evalErr.Message)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(explained, "", "    ")
	fmt.Println(string(out))
}

// runServer pre-elaborates any contract files named after the address
// and serves them.
func runServer(args []string) {
	addr := serve.DEFAULT_ADDR
	files := args
	if len(args) > 0 && !strings.HasSuffix(args[0], ".tenor") {
		addr = args[0]
		files = args[1:]
	}
	sv := service.NewService()
	for _, f := range files {
		lc, e := sv.LoadFile(f)
		if e != nil {
			fmt.Fprintln(os.Stderr, text.Red("error")+": "+e.Message)
			os.Exit(1)
		}
		fmt.Println("Serving contract " + text.Emph(lc.Id) + ".")
	}
	fmt.Println("Listening on " + addr + ".")
	if err := serve.Serve(addr, sv); err != nil {
		fmt.Fprintln(os.Stderr, text.Red("error")+": "+err.Error())
		os.Exit(1)
	}
}
