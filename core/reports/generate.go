package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lingting/rehab-core/core/llms"
)

const reportPrompt = "你是一个人工耳蜗术后康复训练系统报告生成AI,你将接受一份用户训练记录的json文件,并根据训练记录生成一个去除文件头的html格式康复报告,不要写文件头!!!!内容不要太长,训练记录包含一个type字段,该字段为训练类型,(0:人机对话训练，1:听音辩声，2:听声辩位)，报告包括四个部分：等级与分数，题目统计（对话不需要此部分），薄弱项分析，结语，你的输出不应包含除报告以外的任何内容"

// GenerationStore is the store the report generator reads from and writes to.
type GenerationStore interface {
	Sink
	Count() (int, error)
	Load(id int) (Record, error)
}

type GenerateOption func(*generateOptions)

type generateOptions struct {
	overwrite bool
}

// WithOverwrite regenerates reports for records that already have one.
func WithOverwrite(overwrite bool) GenerateOption {
	return func(o *generateOptions) {
		o.overwrite = overwrite
	}
}

// GenerateAll writes a generated report into every allocated record and
// returns how many were written. Missing records are skipped and a failed
// generation stops the run.
func GenerateAll(ctx context.Context, store GenerationStore, generator llms.Generator, opts ...GenerateOption) (int, error) {
	options := generateOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	count, err := store.Count()
	if err != nil {
		return 0, err
	}

	written := 0
	for id := range count {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		record, err := store.Load(id)
		if errors.Is(err, ErrRecordNotFound) {
			continue
		} else if err != nil {
			return written, err
		}
		if record.Report != "" && !options.overwrite {
			continue
		}

		logger.Info("generating report", "id", id)
		report, err := Generate(ctx, generator, record)
		if err != nil {
			return written, err
		}
		record.Report = report
		if err := store.Save(ctx, record); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Generate asks the generator for an HTML report of a single record.
func Generate(ctx context.Context, generator llms.Generator, record Record) (string, error) {
	ctx, span := tracer.Start(ctx, "generate report")
	defer span.End()
	span.SetAttributes(
		attribute.Int("report.id", record.ID),
		attribute.String("report.type", record.Type.String()),
	)

	record.Report = ""
	payload, err := encodeRecord(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode record")
		return "", err
	}

	reply, err := generator.Generate(ctx, []llms.Turn{
		llms.SystemTurn(reportPrompt),
		llms.SystemTurn(payload),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "report generation failed")
		return "", fmt.Errorf("failed to generate report %d: %w", record.ID, err)
	}

	report := strings.TrimSpace(reply.Content)
	if report == "" {
		err := fmt.Errorf("empty report generated for record %d", record.ID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty report")
		return "", err
	}
	return report, nil
}

func encodeRecord(record Record) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(record); err != nil {
		return "", fmt.Errorf("failed to encode record %d: %w", record.ID, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
