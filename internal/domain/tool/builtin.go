package tool

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/matiasleandrokruk/sqlagent/internal/domain/nl2sql"
)

const (
	BuiltinEntityExtraction = "entity-extraction"
	BuiltinQueryBuilder     = "query-builder"
	BuiltinQueryExecutor    = "query-executor"
	BuiltinAnswerSynthesis  = "answer-synthesis"
)

type (
	entityExtractor interface {
		Extract(ctx context.Context, question string) map[string]any
	}
	queryBuilder interface {
		Build(ctx context.Context, question string, entities map[string]any) string
	}
	queryRunner interface {
		Run(ctx context.Context, specText string) nl2sql.ResultSet
	}
	answerSynthesizer interface {
		Synthesize(ctx context.Context, question string, result map[string]any) string
	}
)

// BuiltinServices holds the domain services behind the four built-in tools.
type BuiltinServices struct {
	Extractor   entityExtractor
	Builder     queryBuilder
	Runner      queryRunner
	Synthesizer answerSynthesizer
}

func builtinDefinitions() ([]Definition, error) {
	extractionIn, err := SchemaFor[nl2sql.ExtractionInput]()
	if err != nil {
		return nil, err
	}
	buildIn, err := SchemaFor[nl2sql.BuildInput]()
	if err != nil {
		return nil, err
	}
	executeIn, err := SchemaFor[nl2sql.ExecuteInput]()
	if err != nil {
		return nil, err
	}
	synthesisIn, err := SchemaFor[nl2sql.SynthesisInput]()
	if err != nil {
		return nil, err
	}

	return []Definition{
		{
			Name:         BuiltinEntityExtraction,
			Description:  "Analyse a question and return the table, columns_to_select and filters needed to answer it, or an error marker.",
			InputSchema:  extractionIn,
			OutputSchema: entitiesSchema(),
		},
		{
			Name:        BuiltinQueryBuilder,
			Description: "Write a single SQLite query for a question and its extracted entities. Returns text containing a JSON object with sql_query or error.",
			InputSchema: buildIn,
		},
		{
			Name:         BuiltinQueryExecutor,
			Description:  "Run the sql_query found in query-spec text against the read-only store and return every row as data, or an error marker with empty data.",
			InputSchema:  executeIn,
			OutputSchema: resultSetSchema(),
		},
		{
			Name:        BuiltinAnswerSynthesis,
			Description: "Write the final natural-language answer from the question and the query result.",
			InputSchema: synthesisIn,
		},
	}, nil
}

func entitiesSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"table":             {Type: "string", Description: "table to query"},
			"columns_to_select": {Type: "array", Description: "columns needed in the answer"},
			"filters":           {Type: "object", Description: "column to value criteria"},
			nl2sql.MarkerKey:    {Type: "string", Description: "set when extraction failed"},
		},
	}
}

func resultSetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"data"},
		Properties: map[string]*jsonschema.Schema{
			"data": {
				Type:        "array",
				Description: "result rows, column name to value, in column order",
				Items:       &jsonschema.Schema{Type: "object"},
			},
			nl2sql.MarkerKey: {Type: "string", Description: "set when the query could not run"},
		},
	}
}

// RegisterBuiltInExecutors registers the four pipeline tools. Executors for
// structured tools return a JSON object; text tools return a JSON string.
func RegisterBuiltInExecutors(registry *ToolRegistry, services BuiltinServices) error {
	if services.Extractor == nil || services.Builder == nil || services.Runner == nil || services.Synthesizer == nil {
		return errors.New("builtin tools: all services are required")
	}

	defs, err := builtinDefinitions()
	if err != nil {
		return err
	}

	executors := map[string]ToolExecutor{
		BuiltinEntityExtraction: NewEntityExtractionExecutor(services.Extractor),
		BuiltinQueryBuilder:     NewQueryBuilderExecutor(services.Builder),
		BuiltinQueryExecutor:    NewQueryExecutorExecutor(services.Runner),
		BuiltinAnswerSynthesis:  NewAnswerSynthesisExecutor(services.Synthesizer),
	}

	for _, def := range defs {
		if err := registerBuiltinExecutor(registry, def, executors[def.Name]); err != nil {
			return err
		}
	}
	return nil
}

func registerBuiltinExecutor(registry *ToolRegistry, def Definition, executor ToolExecutor) error {
	if err := registry.Register(def, executor); err != nil && !errors.Is(err, ErrToolExecutorAlreadyRegistered) {
		return err
	}
	return nil
}
