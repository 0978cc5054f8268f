// Package wire provides dependency injection for the expfactory application.
// It creates singleton services with lazy initialization.
package wire

import (
	"io"
	"log"
	"os"
	"sync"

	cliadapter "github.com/example/expfactory/internal/adapters/cli"
	"github.com/example/expfactory/internal/adapters/filesystem"
	"github.com/example/expfactory/internal/adapters/sqlite"
	"github.com/example/expfactory/internal/app"
	"github.com/example/expfactory/internal/config"
	"github.com/example/expfactory/internal/db"
	"github.com/example/expfactory/internal/ports/primary"
)

var (
	originService     primary.OriginService
	experimentService primary.ExperimentService
	batteryService    primary.BatteryService
	orderingService   primary.OrderingService
	subjectService    primary.SubjectService
	assignmentService primary.AssignmentService
	resultService     primary.ResultService
	tagService        primary.TagService
	logService        primary.LogService
	once              sync.Once
)

// OriginService returns the singleton OriginService instance.
func OriginService() primary.OriginService {
	once.Do(initServices)
	return originService
}

// ExperimentService returns the singleton ExperimentService instance.
func ExperimentService() primary.ExperimentService {
	once.Do(initServices)
	return experimentService
}

// BatteryService returns the singleton BatteryService instance.
func BatteryService() primary.BatteryService {
	once.Do(initServices)
	return batteryService
}

// OrderingService returns the singleton OrderingService instance.
func OrderingService() primary.OrderingService {
	once.Do(initServices)
	return orderingService
}

// SubjectService returns the singleton SubjectService instance.
func SubjectService() primary.SubjectService {
	once.Do(initServices)
	return subjectService
}

// AssignmentService returns the singleton AssignmentService instance.
func AssignmentService() primary.AssignmentService {
	once.Do(initServices)
	return assignmentService
}

// ResultService returns the singleton ResultService instance.
func ResultService() primary.ResultService {
	once.Do(initServices)
	return resultService
}

// TagService returns the singleton TagService instance.
func TagService() primary.TagService {
	once.Do(initServices)
	return tagService
}

// LogService returns the singleton LogService instance.
func LogService() primary.LogService {
	once.Do(initServices)
	return logService
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Get database connection
	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	workspace, err := filesystem.NewWorkspaceAdapter(cfg.RepoDir, cfg.DeploymentDir)
	if err != nil {
		log.Fatalf("failed to initialize workspace: %v", err)
	}

	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	originRepo := sqlite.NewOriginRepository(database)
	frameworkRepo := sqlite.NewFrameworkRepository(database)
	expRepo := sqlite.NewExperimentRepoRepository(database)
	instanceRepo := sqlite.NewInstanceRepository(database)
	batteryRepo := sqlite.NewBatteryRepository(database)
	batteryExpRepo := sqlite.NewBatteryExperimentRepository(database)
	subjectRepo := sqlite.NewSubjectRepository(database)
	orderingRepo := sqlite.NewOrderingRepository(database)
	assignmentRepo := sqlite.NewAssignmentRepository(database)
	resultRepo := sqlite.NewResultRepository(database)
	tagRepo := sqlite.NewTagRepository(database)
	auditRepo := sqlite.NewAuditLogRepository(database)

	// Every mutating service records its changes through the same writer
	logWriter := sqlite.NewLogWriterAdapter(auditRepo)

	// Create services (primary ports implementation)
	originService = app.NewOriginService(originRepo, expRepo, instanceRepo, batteryExpRepo, workspace, logWriter)
	experimentService = app.NewExperimentService(expRepo, originRepo, instanceRepo, frameworkRepo, tagRepo, workspace, logWriter)
	batteryService = app.NewBatteryService(batteryRepo, batteryExpRepo, expRepo, originRepo, instanceRepo, orderingRepo, workspace, logWriter)
	orderingService = app.NewOrderingService(batteryRepo, batteryExpRepo, orderingRepo, nil)
	subjectService = app.NewSubjectService(subjectRepo, tagRepo, logWriter)
	assignmentService = app.NewAssignmentService(app.AssignmentRepos{
		Assignments:        assignmentRepo,
		Subjects:           subjectRepo,
		Batteries:          batteryRepo,
		BatteryExperiments: batteryExpRepo,
		Instances:          instanceRepo,
		Results:            resultRepo,
		ExperimentRepos:    expRepo,
		Origins:            originRepo,
	}, nil, logWriter)
	resultService = app.NewResultService(resultRepo, assignmentRepo, batteryExpRepo, logWriter)
	tagService = app.NewTagService(tagRepo)
	logService = app.NewLogService(auditRepo)
}

// BatteryAdapter returns a new BatteryAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func BatteryAdapter() *cliadapter.BatteryAdapter {
	return BatteryAdapterWithOutput(os.Stdout)
}

// BatteryAdapterWithOutput returns a new BatteryAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func BatteryAdapterWithOutput(out io.Writer) *cliadapter.BatteryAdapter {
	once.Do(initServices)
	return cliadapter.NewBatteryAdapter(batteryService, out)
}

// ExportAdapter returns a new ExportAdapter writing to stdout.
func ExportAdapter() *cliadapter.ExportAdapter {
	return ExportAdapterWithOutput(os.Stdout)
}

// ExportAdapterWithOutput returns a new ExportAdapter writing to the given output.
func ExportAdapterWithOutput(out io.Writer) *cliadapter.ExportAdapter {
	once.Do(initServices)
	return cliadapter.NewExportAdapter(resultService, out)
}
