package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"DotPilot/sdk/go/dotpilot"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "DotPilot API address")
	query := flag.String("query", "List the nomination pools on Paseo", "question for the agent")
	async := flag.Bool("async", false, "queue the query and poll for the result")
	flag.Parse()

	client, err := dotpilot.NewClient(*addr, nil)
	if err != nil {
		log.Fatal(err)
	}
	client.SetAccessToken(os.Getenv("DOTPILOT_TOKEN"))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	tools, err := client.Tools(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("agent exposes %d tools\n", len(tools))

	if !*async {
		answer, err := client.Ask(ctx, *query)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s\n(%d iterations, %d tool calls)\n", answer.Output, answer.Iterations, len(answer.ToolResults))
		return
	}

	run, err := client.SubmitRun(ctx, dotpilot.RunRequest{Query: *query})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("queued run %s\n", run.ID)
	run, err = client.WaitRun(ctx, run.ID, time.Second)
	if err != nil {
		log.Fatal(err)
	}
	if run.Result == nil {
		fmt.Printf("run %s finished with status %s: %s\n", run.ID, run.Status, run.LastError)
		return
	}
	fmt.Println(run.Result.Output)
}
