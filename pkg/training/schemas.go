// Package training declares the concrete statistics schemas of a parameter
// averaging training job. The coordinator keeps master stats, which nest the
// common stats of the worker flat-map, which in turn nest per-worker stats:
//
//	ParameterAveragingTrainingMasterStats
//	  CommonTrainingStats
//	    ParameterAveragingTrainingWorkerStats
package training

import (
	"github.com/hyp3rd/trainstats/pkg/stats"
)

// Master keys.
const (
	MasterBroadcastCreateTimes      = "ParameterAveragingMasterBroadcastCreateTimesMs"
	MasterFitTimes                  = "ParameterAveragingMasterFitTimesMs"
	MasterSplitTimes                = "ParameterAveragingMasterSplitTimesMs"
	MasterAggregateTimes            = "ParameterAveragingMasterAggregateTimesMs"
	MasterProcessParamsUpdaterTimes = "ParameterAveragingMasterProcessParamsUpdaterTimesMs"
	MasterRepartitionTimes          = "ParameterAveragingMasterRepartitionTimesMs"
	MasterAveragingCount            = "ParameterAveragingMasterAveragingCount"
)

// Common keys.
const (
	WorkerFlatMapTotalTime             = "WorkerFlatMapTotalTimeMs"
	WorkerFlatMapGetInitialModelTime   = "WorkerFlatMapGetInitialModelTimeMs"
	WorkerFlatMapDataSetGetTimes       = "WorkerFlatMapDataSetGetTimesMs"
	WorkerFlatMapProcessMiniBatchTimes = "WorkerFlatMapProcessMiniBatchTimesMs"
	WorkerFlatMapCountNoDataInstances  = "WorkerFlatMapCountNoDataInstances"
)

// Worker keys.
const (
	WorkerBroadcastGetValueTime = "ParameterAveragingWorkerBroadcastGetValueTimeMs"
	WorkerInitTime              = "ParameterAveragingWorkerInitTimeMs"
	WorkerFitTimes              = "ParameterAveragingWorkerFitTimesMs"
	WorkerSplitTimes            = "ParameterAveragingWorkerSplitTimesMs"
	WorkerExampleCount          = "ParameterAveragingWorkerExampleCount"
	WorkerMinibatchCount        = "ParameterAveragingWorkerMinibatchCount"
	WorkerLastScore             = "ParameterAveragingWorkerLastScore"
	WorkerMachineIDs            = "ParameterAveragingWorkerMachineIDs"
)

// Schema names.
const (
	MasterSchemaName = "ParameterAveragingTrainingMasterStats"
	CommonSchemaName = "CommonTrainingStats"
	WorkerSchemaName = "ParameterAveragingTrainingWorkerStats"
)

//nolint:gochecknoglobals
var (
	workerSchema = mustSchema(WorkerSchemaName, nil,
		stats.Field{Key: WorkerBroadcastGetValueTime, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to fetch the broadcast parameters"},
		stats.Field{Key: WorkerInitTime, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to build the worker network"},
		stats.Field{Key: WorkerFitTimes, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time of every fit call"},
		stats.Field{Key: WorkerSplitTimes, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to split each partition into minibatches"},
		stats.Field{Key: WorkerExampleCount, Kind: stats.KindInt, Rule: stats.RuleSum, Help: "examples processed"},
		stats.Field{Key: WorkerMinibatchCount, Kind: stats.KindInt, Rule: stats.RuleSum, Help: "minibatches processed"},
		stats.Field{Key: WorkerLastScore, Kind: stats.KindFloat, Rule: stats.RuleLast, Help: "score after the last fit"},
		stats.Field{Key: WorkerMachineIDs, Kind: stats.KindStrings, Rule: stats.RuleUnion, Help: "machines that ran workers"},
	)

	commonSchema = mustSchema(CommonSchemaName, workerSchema,
		stats.Field{Key: WorkerFlatMapTotalTime, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "total time of each worker partition"},
		stats.Field{Key: WorkerFlatMapGetInitialModelTime, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to obtain the initial model"},
		stats.Field{Key: WorkerFlatMapDataSetGetTimes, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to fetch each dataset"},
		stats.Field{Key: WorkerFlatMapProcessMiniBatchTimes, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to process each minibatch"},
		stats.Field{Key: WorkerFlatMapCountNoDataInstances, Kind: stats.KindInt, Rule: stats.RuleSum, Help: "partitions that received no data"},
	)

	masterSchema = mustSchema(MasterSchemaName, commonSchema,
		stats.Field{Key: MasterBroadcastCreateTimes, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to create each parameter broadcast"},
		stats.Field{Key: MasterFitTimes, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time of each distributed fit"},
		stats.Field{Key: MasterSplitTimes, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to split the training data"},
		stats.Field{Key: MasterAggregateTimes, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to aggregate worker results"},
		stats.Field{Key: MasterProcessParamsUpdaterTimes, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to apply averaged parameters"},
		stats.Field{Key: MasterRepartitionTimes, Kind: stats.KindEvents, Rule: stats.RuleConcat, Help: "time to repartition the data"},
		stats.Field{Key: MasterAveragingCount, Kind: stats.KindInt, Rule: stats.RuleSum, Help: "parameter averaging rounds"},
	)
)

// MasterSchema is the schema of coordinator statistics.
func MasterSchema() *stats.Schema { return masterSchema }

// CommonSchema is the schema of the worker flat-map statistics.
func CommonSchema() *stats.Schema { return commonSchema }

// WorkerSchema is the schema of per-worker statistics.
func WorkerSchema() *stats.Schema { return workerSchema }

// NewRegistry returns a registry holding the three training schemas.
func NewRegistry() *stats.Registry {
	registry, err := stats.NewRegistry(masterSchema)
	if err != nil {
		// the schemas above are fixed; a conflict is a programming error
		panic(err)
	}

	return registry
}

// NewWorkerStats returns empty per-worker statistics.
func NewWorkerStats() *stats.Set { return stats.New(workerSchema) }

// NewCommonStats returns empty flat-map statistics nesting worker, which may be nil.
func NewCommonStats(worker *stats.Set) (*stats.Set, error) {
	return nest(commonSchema, worker)
}

// NewMasterStats returns empty coordinator statistics nesting common, which may be nil.
func NewMasterStats(common *stats.Set) (*stats.Set, error) {
	return nest(masterSchema, common)
}

func nest(schema *stats.Schema, child *stats.Set) (*stats.Set, error) {
	set := stats.New(schema)
	if child == nil {
		return set, nil
	}

	err := set.SetNested(child)
	if err != nil {
		return nil, err
	}

	return set, nil
}

func mustSchema(name string, nested *stats.Schema, fields ...stats.Field) *stats.Schema {
	schema, err := stats.NewSchema(name, nested, fields...)
	if err != nil {
		panic(err)
	}

	return schema
}
