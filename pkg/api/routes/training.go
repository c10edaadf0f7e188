package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/neuralforge/platform/pkg/common/models"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/forge"
	"github.com/neuralforge/platform/pkg/training"
)

type TrainingHandler struct {
	engine *forge.Engine
}

func NewTrainingHandler(engine *forge.Engine) *TrainingHandler {
	return &TrainingHandler{engine: engine}
}

func (h *TrainingHandler) Register(r *mux.Router) {
	r.HandleFunc("/jobs", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/jobs", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/submissions", h.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/complete", h.handleComplete).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/cancel", h.handleCancel).Methods(http.MethodPost)
}

func jobView(j training.Job) models.TrainingJob {
	out := models.TrainingJob{
		ID:                     j.ID,
		Creator:                j.Creator.String(),
		ModelRef:               j.ModelRef,
		DatasetRef:             j.DatasetRef,
		Reward:                 amount(&j.Reward),
		RequiredComputingPower: j.RequiredComputingPower,
		DurationSeconds:        j.DurationSeconds,
		Status:                 string(j.Status),
		CreatedAt:              j.CreatedAt,
		Deadline:               j.Deadline(),
		ClosedAt:               j.ClosedAt,
		ParticipantCount:       j.ParticipantCount,
		Submissions:            make([]models.Submission, 0, len(j.Submissions)),
	}
	for _, s := range j.Submissions {
		out.Submissions = append(out.Submissions, models.Submission{
			Participant: s.Participant.String(),
			ResultRef:   s.ResultRef,
			Score:       int(s.Score),
			SubmittedAt: s.SubmittedAt,
		})
	}
	for _, p := range j.Payouts {
		out.Payouts = append(out.Payouts, models.Payout{Participant: p.Participant.String(), Amount: amount(&p.Amount)})
	}
	return out
}

// handleList supports ?status=Open|Completed|Cancelled.
func (h *TrainingHandler) handleList(w http.ResponseWriter, r *http.Request) {
	status := training.Status(r.URL.Query().Get("status"))
	jobs := h.engine.ListJobs()
	out := make([]models.TrainingJob, 0, len(jobs))
	for _, j := range jobs {
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, jobView(j))
	}
	writeJSON(w, out)
}

func (h *TrainingHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "getJobDetails")
	if !ok {
		return
	}
	j, err := h.engine.GetJobDetails(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, jobView(j))
}

func (h *TrainingHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req models.CreateTrainingJobRequest
	if !decode(w, r, "createTrainingJob", &req) {
		return
	}
	reward, ok := parseAmount(w, "createTrainingJob", req.Reward)
	if !ok {
		return
	}
	id, recs, err := h.engine.CreateTrainingJob(caller, training.CreateJobInput{
		ModelRef:               req.ModelRef,
		DatasetRef:             req.DatasetRef,
		Reward:                 reward,
		RequiredComputingPower: req.RequiredComputingPower,
		DurationSeconds:        req.DurationSeconds,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, receipt(recs, &id))
}

func (h *TrainingHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "submitTrainingResult")
	if !ok {
		return
	}
	var req models.SubmitResultRequest
	if !decode(w, r, "submitTrainingResult", &req) {
		return
	}
	recs, err := h.engine.SubmitTrainingResult(caller, id, req.ResultRef, req.Score)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, &id))
}

// handleComplete pays out the given plan, or splits the reward by score
// when the request carries no payouts.
func (h *TrainingHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	const op = "completeTrainingJob"
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, op)
	if !ok {
		return
	}
	var req models.CompleteJobRequest
	if !decodeOptional(w, r, op, &req) {
		return
	}

	var (
		recs []events.Record
		err  error
	)
	if len(req.Payouts) == 0 {
		_, recs, err = h.engine.CompleteTrainingJobProportionally(caller, id)
	} else {
		plan := make([]training.Payout, 0, len(req.Payouts))
		for _, entry := range req.Payouts {
			participant, ok := parseAccount(w, op, entry.Participant)
			if !ok {
				return
			}
			share, ok := parseAmount(w, op, entry.Amount)
			if !ok {
				return
			}
			plan = append(plan, training.Payout{Participant: participant, Amount: *share})
		}
		recs, err = h.engine.CompleteTrainingJob(caller, id, plan)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, &id))
}

func (h *TrainingHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "cancelTrainingJob")
	if !ok {
		return
	}
	recs, err := h.engine.CancelTrainingJob(caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, &id))
}
