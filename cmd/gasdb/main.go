// Command gasdb is a REPL for exploring a GASDB database from a terminal,
// grounded on the teacher pack's docdb/cmd/docdbsh shell (dot-prefixed
// commands, one collection "current" at a time) and platform/cmd/cli's
// cobra root-command shape.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/kartikbazzad/gasdb"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gasdb",
	Short: "GASDB command line shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(configPath)
	},
}

func main() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a GASDB config file (optional)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runShell(configPath string) error {
	cfg, err := gasdb.LoadConfig(configPath)
	if err != nil {
		return err
	}
	db, err := gasdb.Open(cfg.ToOptions(gasdb.DefaultOptions()))
	if err != nil {
		return err
	}
	defer db.Close()

	sh := newShell(db)
	return sh.run()
}

type shell struct {
	db      *gasdb.Database
	current string
	line    *liner.State
}

func newShell(db *gasdb.Database) *shell {
	s := &shell{db: db, line: liner.NewLiner()}
	s.line.SetCtrlCAborts(true)
	return s
}

func (s *shell) run() error {
	defer s.line.Close()
	fmt.Println("gasdb shell. Type .help for commands, .exit to quit.")
	for {
		prompt := "gasdb> "
		if s.current != "" {
			prompt = fmt.Sprintf("gasdb[%s]> ", s.current)
		}
		input, err := s.line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		s.line.AppendHistory(input)

		if exit := s.dispatch(input); exit {
			return nil
		}
	}
}

func (s *shell) dispatch(input string) (exit bool) {
	fields := strings.Fields(input)
	cmd := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(input, cmd))

	switch cmd {
	case ".help":
		printHelp()
	case ".exit", ".quit":
		return true
	case ".list":
		s.cmdList()
	case ".create":
		s.cmdCreate(rest)
	case ".use":
		s.cmdUse(rest)
	case ".drop":
		s.cmdDrop(rest)
	case ".insert":
		s.cmdInsert(rest)
	case ".find":
		s.cmdFind(rest)
	case ".update":
		s.cmdUpdate(rest)
	case ".delete":
		s.cmdDelete(rest)
	case ".count":
		s.cmdCount(rest)
	default:
		fmt.Println("unknown command, try .help")
	}
	return false
}

func printHelp() {
	fmt.Println("Meta:")
	fmt.Println("  .help                         show this message")
	fmt.Println("  .exit                         quit the shell")
	fmt.Println("Collections:")
	fmt.Println("  .list                         list collections")
	fmt.Println("  .create <name>                create a collection")
	fmt.Println("  .use <name>                   set the current collection")
	fmt.Println("  .drop <name>                  drop a collection")
	fmt.Println("Documents (current collection):")
	fmt.Println("  .insert <json>                insert a document")
	fmt.Println("  .find <json filter>           find matching documents")
	fmt.Println("  .count <json filter>          count matching documents")
	fmt.Println("  .update <filter json> <update json>   update the first match")
	fmt.Println("  .delete <json filter>         delete the first match")
}

func (s *shell) requireCollection() (*gasdb.Collection, bool) {
	if s.current == "" {
		fmt.Println("no current collection, run .use <name> first")
		return nil, false
	}
	coll, err := s.db.Collection(s.current)
	if err != nil {
		fmt.Println("error:", err)
		return nil, false
	}
	return coll, true
}

func (s *shell) cmdList() {
	names, err := s.db.ListCollections()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func (s *shell) cmdCreate(name string) {
	if name == "" {
		fmt.Println("usage: .create <name>")
		return
	}
	if _, err := s.db.CreateCollection(name); err != nil {
		fmt.Println("error:", err)
		return
	}
	s.current = name
}

func (s *shell) cmdUse(name string) {
	if name == "" {
		fmt.Println("usage: .use <name>")
		return
	}
	if _, err := s.db.Collection(name); err != nil {
		fmt.Println("error:", err)
		return
	}
	s.current = name
}

func (s *shell) cmdDrop(name string) {
	if name == "" {
		fmt.Println("usage: .drop <name>")
		return
	}
	if err := s.db.DropCollection(name); err != nil {
		fmt.Println("error:", err)
		return
	}
	if s.current == name {
		s.current = ""
	}
}

func (s *shell) cmdInsert(jsonDoc string) {
	coll, ok := s.requireCollection()
	if !ok {
		return
	}
	doc, err := parseDocument(jsonDoc)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	result, err := coll.InsertOne(doc)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("inserted %s\n", result.InsertedID)
}

func (s *shell) cmdFind(jsonFilter string) {
	coll, ok := s.requireCollection()
	if !ok {
		return
	}
	filter, err := parseFilter(jsonFilter)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	docs, err := coll.Find(filter)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, d := range docs {
		printDocument(d)
	}
	fmt.Printf("(%d documents)\n", len(docs))
}

func (s *shell) cmdCount(jsonFilter string) {
	coll, ok := s.requireCollection()
	if !ok {
		return
	}
	filter, err := parseFilter(jsonFilter)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	n, err := coll.CountDocuments(filter)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(n)
}

func (s *shell) cmdUpdate(rest string) {
	coll, ok := s.requireCollection()
	if !ok {
		return
	}
	filterJSON, updateJSON, ok := splitTwoJSONArgs(rest)
	if !ok {
		fmt.Println("usage: .update <filter json> <update json>")
		return
	}
	filter, err := parseFilter(filterJSON)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	upd, err := parseDocument(updateJSON)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	result, err := coll.UpdateOne(filter, upd)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("matched %d, modified %d\n", result.MatchedCount, result.ModifiedCount)
}

func (s *shell) cmdDelete(jsonFilter string) {
	coll, ok := s.requireCollection()
	if !ok {
		return
	}
	filter, err := parseFilter(jsonFilter)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	result, err := coll.DeleteOne(filter)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("deleted %d\n", result.DeletedCount)
}
