package beneficiary

import (
	"embed"
	"encoding/hex"

	"github.com/go-faster/errors"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/infrastructure/crypto"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/infrastructure/persistence"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/presentation/controllers"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/services"
	"github.com/sevakendra/beneficiary-portal/pkg/application"
	"github.com/sevakendra/beneficiary-portal/pkg/composables"
	"github.com/sevakendra/beneficiary-portal/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Name() string {
	return "beneficiary"
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	key, err := hex.DecodeString(conf.SensitiveData.Key)
	if err != nil {
		return errors.Wrap(err, "invalid sensitive data key")
	}
	sensitiveData, err := crypto.NewAESGCMService(key)
	if err != nil {
		return errors.Wrap(err, "failed to initialize sensitive data service")
	}

	beneficiaryRepo := persistence.NewBeneficiaryRepository()
	requestRepo := persistence.NewChangeRequestRepository()
	auditRepo := persistence.NewAuditRepository()

	snapshots := services.NewSnapshotBuilder(beneficiaryRepo, sensitiveData)
	tx := composables.NewTransactor()
	submissionService := services.NewChangeRequestService(
		requestRepo,
		auditRepo,
		beneficiaryRepo,
		snapshots,
		tx,
		app.EventPublisher(),
	)
	reviewService := services.NewReviewService(
		requestRepo,
		auditRepo,
		beneficiaryRepo,
		sensitiveData,
		tx,
		app.EventPublisher(),
	)

	app.Migrations().RegisterSchema(&migrationFiles)
	app.RegisterServices(submissionService, reviewService)
	app.RegisterControllers(
		controllers.NewProfileAPIController(submissionService, sensitiveData),
		controllers.NewReviewAPIController(reviewService, sensitiveData),
	)
	return nil
}
