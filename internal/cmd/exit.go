package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	errwrap "github.com/charybdis/charybdis/internal/errors"
	"github.com/charybdis/charybdis/internal/observability"
)

// ExitCodeFor classifies a command error into a foundry exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	if err == nil {
		return foundry.ExitFailure
	}
	envelope := errwrap.FromClientError(context.Background(), err)
	switch envelope.Code {
	case errwrap.CodeConfigInvalid, errwrap.CodeInvalidInput:
		return foundry.ExitConfigInvalid
	case errwrap.CodeExternalService, errwrap.CodeSessionRejected, errwrap.CodeTimeout, errwrap.CodeUnavailable:
		return foundry.ExitExternalServiceUnavailable
	}
	if stderrors.Is(err, os.ErrNotExist) {
		return foundry.ExitFileNotFound
	}
	return foundry.ExitFailure
}

// Exit classifies err and exits. main calls it once a command fails.
func Exit(err error) {
	ExitWithCode(observability.CLILogger, ExitCodeFor(err), "Command failed", err)
}

// ExitWithCode logs err with the exit code's catalog metadata and exits. A
// nil logger writes plain lines to stderr instead.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	if logger == nil {
		writeExitReport(os.Stderr, exitDescription{Code: info.Code, Name: info.Name, Description: info.Description}, msg, err)
		os.Exit(info.Code)
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if original, ok := envelope.Original.(error); ok {
			err = original
		}
	}
	fields = append(fields, zap.Error(err))
	logger.Error(msg, fields...)

	os.Exit(info.Code)
}

type exitDescription struct {
	Code        int
	Name        string
	Description string
}

func writeExitReport(w io.Writer, info exitDescription, msg string, err error) {
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	case stderrors.As(err, &envelope):
		fmt.Fprintf(w, "FATAL: %s [%s]: %s (correlation: %s)\n", msg, envelope.Code, envelope.Message, envelope.CorrelationID)
		if original, ok := envelope.Original.(error); ok {
			fmt.Fprintf(w, "Underlying error: %v\n", original)
		}
	default:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	}
	fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
}
