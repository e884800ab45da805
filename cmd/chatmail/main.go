package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"chatmail/internal/api"
	"chatmail/internal/config"
	"chatmail/internal/controller"
	"chatmail/internal/models"
	"chatmail/internal/version"
)

func main() {
	configPathFlag := flag.String("config", "", "Path to JSON configuration file (default: ~/.config/chatmail/config.json)")
	versionFlag := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.GetDetailedVersionString())
		return
	}

	configPath := *configPathFlag
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("could not load configuration: %v", err)
	}

	var logger *log.Logger
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			log.Fatalf("could not open log file: %v", err)
		}
		defer f.Close()
		logger = log.New(f, "[chatmail] ", log.LstdFlags|log.Lmicroseconds)
	}

	client := api.NewClient(cfg.BaseURL)
	chat := controller.NewChatController(client)
	mailbox := controller.NewMailboxController(client)
	nav := controller.NewNavigator()
	if logger != nil {
		client.SetLogger(logger)
		chat.SetLogger(logger)
		mailbox.SetLogger(logger)
	}

	ctx := context.Background()
	if err := chat.LoadUsers(ctx); err != nil {
		// Degrade silently like the views do: the shell starts with an
		// empty user list and the command still works once the server is up.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	shell := &shell{chat: chat, mailbox: mailbox, nav: nav}
	shell.run(ctx, os.Stdin)
}

type shell struct {
	chat    *controller.ChatController
	mailbox *controller.MailboxController
	nav     *controller.Navigator
}

func (s *shell) run(ctx context.Context, in *os.File) {
	fmt.Printf("%s — type 'help' for commands\n", version.GetVersionString())
	scanner := bufio.NewScanner(in)
	for {
		fmt.Printf("%s> ", s.nav.Active())
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return
		}
		if err := s.dispatch(ctx, cmd, args, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (s *shell) dispatch(ctx context.Context, cmd string, args []string, line string) error {
	switch cmd {
	case "help":
		s.printHelp()
		return nil
	case "view":
		if len(args) != 1 {
			return fmt.Errorf("usage: view chat|mail")
		}
		switch args[0] {
		case "chat":
			return s.nav.Activate(controller.ViewMessaging)
		case "mail":
			return s.nav.Activate(controller.ViewMailbox)
		}
		return fmt.Errorf("unknown view %q", args[0])
	}
	if s.nav.Active() == controller.ViewMessaging {
		return s.dispatchChat(ctx, cmd, args, line)
	}
	return s.dispatchMail(ctx, cmd, args, line)
}

func (s *shell) dispatchChat(ctx context.Context, cmd string, args []string, line string) error {
	switch cmd {
	case "users":
		if err := s.chat.LoadUsers(ctx); err != nil {
			return err
		}
		for _, u := range s.chat.Users() {
			marker := " "
			if u.ID == s.chat.CurrentUserID() {
				marker = "*"
			}
			fmt.Printf("%s %s  %s <%s>\n", marker, u.ID, u.Name, u.Email)
		}
		return nil
	case "adduser":
		if len(args) < 2 {
			return fmt.Errorf("usage: adduser <name> <email>")
		}
		follow, err := s.chat.CreateUser(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return s.chat.Run(ctx, follow)
	case "user":
		if len(args) != 1 {
			return fmt.Errorf("usage: user <id>")
		}
		return s.chat.Run(ctx, s.chat.SelectUser(args[0]))
	case "convs":
		if err := s.chat.LoadConversations(ctx); err != nil {
			return err
		}
		for _, c := range s.chat.Conversations() {
			last := c.LastMessage
			if last == "" {
				last = "No messages yet"
			}
			fmt.Printf("%s  %s — %s\n", c.ID, c.Title, last)
		}
		return nil
	case "start":
		if len(args) != 1 {
			return fmt.Errorf("usage: start <other-user-id>")
		}
		follow, err := s.chat.StartConversation(ctx, args[0])
		if err != nil {
			return err
		}
		return s.chat.Run(ctx, follow)
	case "open":
		if len(args) != 1 {
			return fmt.Errorf("usage: open <conversation-id>")
		}
		return s.chat.Run(ctx, s.chat.SelectConversation(args[0]))
	case "msgs":
		if err := s.chat.LoadMessages(ctx); err != nil {
			return err
		}
		for _, m := range s.chat.Messages() {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), m.SenderID, m.Content)
		}
		return nil
	case "say":
		text := strings.TrimSpace(strings.TrimPrefix(line, "say"))
		if text == "" {
			return fmt.Errorf("usage: say <text>")
		}
		s.chat.SetComposeText(text)
		follow, err := s.chat.SendMessage(ctx)
		if err != nil {
			return err
		}
		return s.chat.Run(ctx, follow)
	}
	return fmt.Errorf("unknown command %q (try 'help')", cmd)
}

func (s *shell) dispatchMail(ctx context.Context, cmd string, args []string, line string) error {
	switch cmd {
	case "owner":
		if len(args) != 1 {
			return fmt.Errorf("usage: owner <email>")
		}
		return s.mailbox.Run(ctx, s.mailbox.SetOwner(args[0]))
	case "folder":
		if len(args) != 1 {
			return fmt.Errorf("usage: folder inbox|sent|trash|archived")
		}
		folder, err := models.ParseFolder(args[0])
		if err != nil {
			return err
		}
		follow, err := s.mailbox.SetFolder(folder)
		if err != nil {
			return err
		}
		return s.mailbox.Run(ctx, follow)
	case "items":
		if err := s.mailbox.LoadItems(ctx); err != nil {
			return err
		}
		for _, item := range s.mailbox.Items() {
			read := " "
			if !item.Read {
				read = "●"
			}
			fmt.Printf("%s %s  %s — from %s to %s\n", read, item.ID, item.Subject, item.Sender, strings.Join(item.To, ", "))
		}
		return nil
	case "from", "to", "subject", "body":
		value := strings.TrimSpace(strings.TrimPrefix(line, cmd))
		compose := s.mailbox.Compose()
		switch cmd {
		case "from":
			compose.Sender = value
		case "to":
			compose.To = value
		case "subject":
			compose.Subject = value
		case "body":
			compose.Body = value
		}
		s.mailbox.SetCompose(compose)
		return nil
	case "send":
		follow, err := s.mailbox.Send(ctx)
		if err != nil {
			return err
		}
		return s.mailbox.Run(ctx, follow)
	case "move":
		if len(args) != 2 {
			return fmt.Errorf("usage: move <id> <folder>")
		}
		folder, err := models.ParseFolder(args[1])
		if err != nil {
			return err
		}
		follow, patchErr := s.mailbox.Move(ctx, args[0], folder)
		if err := s.mailbox.Run(ctx, follow); err != nil {
			return err
		}
		return patchErr
	case "read":
		if len(args) != 2 {
			return fmt.Errorf("usage: read <id> true|false")
		}
		read, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("usage: read <id> true|false")
		}
		follow, patchErr := s.mailbox.MarkRead(ctx, args[0], read)
		if err := s.mailbox.Run(ctx, follow); err != nil {
			return err
		}
		return patchErr
	}
	return fmt.Errorf("unknown command %q (try 'help')", cmd)
}

func (s *shell) printHelp() {
	fmt.Print(`Global:
  view chat|mail          switch the active view (state is kept)
  quit                    exit

Chat view:
  users                   refresh and list users (* = current)
  adduser <name> <email>  create a user and select it
  user <id>               select the current user
  convs                   refresh and list conversations
  start <other-id>        start a conversation with another user
  open <conv-id>          open a conversation
  msgs                    refresh and list its messages
  say <text>              send a message

Mail view:
  owner <email>           set the mailbox owner
  folder <name>           select inbox|sent|trash|archived
  items                   refresh and list the current folder
  from|to|subject|body <v> fill the compose fields
  send                    send the composed mail
  move <id> <folder>      move an item
  read <id> true|false    set the read flag
`)
}
