package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/storyreader/internal/authstore"
	"github.com/onnwee/storyreader/internal/config"
	"github.com/onnwee/storyreader/internal/library"
	"github.com/onnwee/storyreader/internal/logger"
	"github.com/onnwee/storyreader/internal/readcache"
	"github.com/onnwee/storyreader/internal/server"
	"github.com/onnwee/storyreader/internal/storyapi"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries command output
	logger.InitTo(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Story Reader - command line client")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  storyctl [-watch] [-every 30s] <story-id>   Show a story and its chapters")
	fmt.Fprintln(w, "  storyctl login <username> <password>        Sign in and store the session")
	fmt.Fprintln(w, "  storyctl logout                             Forget the stored session")
	fmt.Fprintln(w, "  storyctl whoami                             Print the signed-in user")
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return flag.ErrHelp
	}

	svc, err := server.NewLibrary(cfg)
	if err != nil {
		return err
	}
	defer svc.Cache().Close()

	switch args[0] {
	case "login":
		if len(args) != 3 {
			printUsage(out)
			return flag.ErrHelp
		}
		return runLogin(ctx, svc.Client(), args[1], args[2], out)
	case "logout":
		if err := svc.Client().Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Signed out")
		return nil
	case "whoami":
		s, err := svc.Client().CurrentSession(ctx)
		if errors.Is(err, authstore.ErrNoSession) {
			fmt.Fprintln(out, "Not signed in")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%s)\n", s.User.Username, s.User.ID)
		return nil
	}

	fs := flag.NewFlagSet("storyctl", flag.ContinueOnError)
	fs.SetOutput(out)
	watch := fs.Bool("watch", false, "Keep running and print every state change")
	every := fs.Duration("every", 30*time.Second, "How often -watch asks for a refresh")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		printUsage(out)
		return flag.ErrHelp
	}
	if *every <= 0 {
		fmt.Fprintln(out, "-every must be a positive duration")
		return flag.ErrHelp
	}
	storyID := fs.Arg(0)
	if *watch {
		return runWatch(ctx, svc, storyID, *every, out)
	}
	return runShow(ctx, svc, storyID, out)
}

func runLogin(ctx context.Context, c *storyapi.Client, username, password string, out io.Writer) error {
	resp, err := c.Login(ctx, storyapi.Credentials{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Fprintf(out, "Signed in as %s\n", resp.User.Username)
	return nil
}

func runShow(ctx context.Context, svc *library.Service, storyID string, out io.Writer) error {
	story, err := svc.Story(ctx, storyID)
	if err != nil {
		return fmt.Errorf("story %s: %w", storyID, err)
	}
	chapters, err := svc.Chapters(ctx, storyID)
	if err != nil {
		return fmt.Errorf("chapters of %s: %w", storyID, err)
	}
	printStory(out, story, chapters)
	return nil
}

func printStory(out io.Writer, story *storyapi.Story, chapters []storyapi.Chapter) {
	fmt.Fprintln(out, story.Title)
	if story.Author != nil {
		fmt.Fprintf(out, "by %s\n", story.Author.Username)
	}
	for _, ch := range chapters {
		fmt.Fprintf(out, "  %3d. %s\n", ch.Number, ch.Title)
	}
}

// runWatch prints each Result of the story key until ctx ends, asking for a
// refresh every interval.
func runWatch(ctx context.Context, svc *library.Service, storyID string, every time.Duration, out io.Writer) error {
	key := library.StoryKey(storyID)
	producer, ttl, err := svc.Producer(key)
	if err != nil {
		return err
	}
	sub, err := svc.Cache().Subscribe(key, producer, ttl)
	if err != nil {
		return err
	}
	defer sub.Close()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sub.Refresh()
		case res, ok := <-sub.C:
			if !ok {
				return nil
			}
			printResult(out, res)
		}
	}
}

func printResult(out io.Writer, res readcache.Result) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format(time.TimeOnly), res.State)
	if s, ok := res.Value.(*storyapi.Story); ok && s != nil {
		line += " " + s.Title
	}
	if res.Err != nil {
		line += " error: " + res.Err.Error()
	}
	fmt.Fprintln(out, line)
}
