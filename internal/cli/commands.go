package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dmitrijs2005/transfercache/internal/common"
	"github.com/dmitrijs2005/transfercache/internal/respcache"
	"github.com/dmitrijs2005/transfercache/internal/session"
	"github.com/dmitrijs2005/transfercache/internal/taskcache"
)

type command struct {
	usage string
	nargs int
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"show":      {usage: "show <userId> <associateId>", nargs: 2, run: (*App).show},
	"show-task": {usage: "show-task <bgSessionId> <taskId>", nargs: 2, run: (*App).showTask},
	"tasks":     {usage: "tasks <userId>", nargs: 1, run: (*App).listTasks},
	"delete":    {usage: "delete <userId> <associateId>", nargs: 2, run: (*App).delete},
	"record":    {usage: "record <userId> <associateId> <bgSessionId> <taskId>", nargs: 4, run: (*App).record},
	"resp-get":  {usage: "resp-get <userId> <key>", nargs: 2, run: (*App).respGet},
	"logout":    {usage: "logout <userId>", nargs: 1, run: (*App).logout},
}

// Run executes one command. args[0] is the command name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", common.ErrInvalidArgument)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", common.ErrInvalidArgument, args[0])
	}
	if len(args)-1 != cmd.nargs {
		return fmt.Errorf("%w: usage: %s", common.ErrInvalidArgument, cmd.usage)
	}

	a.log.Debug(ctx, "running command", "command", args[0])
	return cmd.run(a, ctx, args[1:])
}

func (a *App) show(_ context.Context, args []string) error {
	info, err := a.tasks.Fetch(args[0], args[1])
	if err != nil {
		return err
	}
	printInfo(a.out, info)
	return nil
}

func (a *App) showTask(_ context.Context, args []string) error {
	id, err := parseTaskID(args[1])
	if err != nil {
		return err
	}
	info, err := a.tasks.FetchByPrimaryKey(args[0], id)
	if err != nil {
		return err
	}
	printInfo(a.out, info)
	return nil
}

func (a *App) listTasks(_ context.Context, args []string) error {
	ids, err := a.tasks.AssociateIDs(args[0])
	if err != nil {
		return err
	}
	for _, id := range ids {
		pk, err := a.tasks.ResolveIndex(args[0], id)
		if err != nil {
			fmt.Fprintf(a.out, "%s\t?\n", id)
			continue
		}
		fmt.Fprintf(a.out, "%s\t%s\n", id, pk)
	}
	return nil
}

func (a *App) delete(_ context.Context, args []string) error {
	return a.tasks.Delete(args[0], args[1])
}

func (a *App) record(_ context.Context, args []string) error {
	id, err := parseTaskID(args[3])
	if err != nil {
		return err
	}
	return a.tasks.RecordIndex(args[0], args[1], args[2], id)
}

func parseTaskID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: task id %q: %v", common.ErrInvalidArgument, s, err)
	}
	return id, nil
}

func (a *App) respGet(ctx context.Context, args []string) error {
	rc, err := a.responseStore(args[0])
	if err != nil {
		return err
	}
	v, ok := rc.Lookup(ctx, args[1])
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrNotFound, args[1])
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrSerialization, err)
	}
	fmt.Fprintln(a.out, string(out))
	return nil
}

func (a *App) logout(ctx context.Context, args []string) error {
	opts := []session.Option{session.WithLogger(a.log)}
	if a.responses != nil {
		opts = append(opts, session.WithResponseCache(a.responses, respcache.WithHook(a.hook)))
	} else {
		a.log.Warn(ctx, "response cache disabled, only task state is purged")
	}
	return session.NewManager(a.tasks, opts...).Logout(ctx, args[0])
}

func printInfo(w io.Writer, info *taskcache.CachedInfo) {
	fmt.Fprintf(w, "task:                %s\n", info.Key())

	dest := "-"
	if info.DestinationFilePath != nil {
		dest = *info.DestinationFilePath
	}
	fmt.Fprintf(w, "destinationFilePath: %s\n", dest)
	fmt.Fprintf(w, "resumeData:          %s\n", byteSize(info.ResumeData))

	resp := "-"
	if info.Response != nil {
		resp = fmt.Sprintf("%d %s", info.Response.StatusCode, info.Response.URL)
	}
	fmt.Fprintf(w, "response:            %s\n", resp)
	fmt.Fprintf(w, "responseData:        %s\n", byteSize(info.ResponseData))

	taskErr := "-"
	if info.Error != nil {
		taskErr = info.Error.Error()
	}
	fmt.Fprintf(w, "error:               %s\n", taskErr)
}

func byteSize(b []byte) string {
	if b == nil {
		return "-"
	}
	return strconv.Itoa(len(b)) + " bytes"
}
