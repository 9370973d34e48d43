package common

import (
	"context"
	"fmt"
	"io"

	"applysharp/internal/errors"
)

// BuildInputFunc loads and assembles the input of a command.
type BuildInputFunc[Input any] func(ctx context.Context) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// OperationFunc runs the command's operation.
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// RunCommand encapsulates the shared flow of the document commands: build
// the input, run the operation, then format and write the result.
func RunCommand[Input, Output any](
	ctx context.Context,
	stdout io.Writer,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	buildInput BuildInputFunc[Input],
	operation OperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	outputHandler := NewOutputHandlerWithWriter(stdout, logger)

	// Fail on a bad output path before spending any search or model calls.
	if err := outputHandler.fileProcessor.ValidateOutputFile(cmdConfig.OutputFile); err != nil {
		return err
	}

	input, err := buildInput(ctx)
	if err != nil {
		return err
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	result, err := operation(ctx, input)
	if err != nil {
		return err
	}

	if err := outputHandler.HandleOutput(result, cmdConfig); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
