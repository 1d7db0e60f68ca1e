package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crewpulse/internal/directory"
	"crewpulse/internal/transport/http/shared"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/requestcontext"
)

// Service defines the directory operations the handler needs.
type Service interface {
	AddEmployee(ctx context.Context, orgID id.OrgID, fullName, email, title string) (*directory.Employee, error)
	GetEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*directory.Employee, error)
	UpdateEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID, req directory.UpdateEmployeeRequest) (*directory.Employee, error)
	DeactivateEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*directory.Employee, error)
	ReactivateEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (*directory.Employee, error)
	ListEmployees(ctx context.Context, orgID id.OrgID, filter directory.EmployeeFilter) ([]*directory.Employee, error)
	CreateDepartment(ctx context.Context, orgID id.OrgID, name, description string) (*directory.Department, error)
	RenameDepartment(ctx context.Context, orgID id.OrgID, deptID id.DepartmentID, name, description string) (*directory.Department, error)
	AssignHead(ctx context.Context, orgID id.OrgID, deptID id.DepartmentID, head id.EmployeeID) (*directory.Department, error)
	MoveEmployee(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID, deptID id.DepartmentID) (*directory.Employee, error)
	ListDepartments(ctx context.Context, orgID id.OrgID) ([]*directory.DepartmentDetails, error)
}

type Handler struct {
	dir    Service
	logger *slog.Logger
}

func New(dir Service, logger *slog.Logger) *Handler {
	return &Handler{dir: dir, logger: logger}
}

// Register mounts directory routes onto the authenticated org router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/directory", func(r chi.Router) {
		r.Post("/employees", h.handleAddEmployee)
		r.Get("/employees", h.handleListEmployees)
		r.Get("/employees/{employeeID}", h.handleGetEmployee)
		r.Patch("/employees/{employeeID}", h.handleUpdateEmployee)
		r.Post("/employees/{employeeID}/deactivate", h.handleDeactivate)
		r.Post("/employees/{employeeID}/reactivate", h.handleReactivate)
		r.Post("/employees/{employeeID}/department", h.handleMoveEmployee)

		r.Post("/departments", h.handleCreateDepartment)
		r.Get("/departments", h.handleListDepartments)
		r.Patch("/departments/{departmentID}", h.handleRenameDepartment)
		r.Post("/departments/{departmentID}/head", h.handleAssignHead)
	})
}

type addEmployeeRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Title    string `json:"title" validate:"omitempty,max=128"`
}

func (h *Handler) handleAddEmployee(w http.ResponseWriter, r *http.Request) {
	var req addEmployeeRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	emp, err := h.dir.AddEmployee(r.Context(), requestcontext.OrgID(r.Context()), req.FullName, req.Email, req.Title)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, emp)
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	filter := directory.EmployeeFilter{
		NamePrefix: r.URL.Query().Get("name"),
		Status:     directory.EmployeeStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("department"); raw != "" {
		deptID, err := id.ParseDepartmentID(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		filter.Department = deptID
	}

	list, err := h.dir.ListEmployees(r.Context(), requestcontext.OrgID(r.Context()), filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"employees": list})
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	emp, err := h.dir.GetEmployee(r.Context(), requestcontext.OrgID(r.Context()), employeeID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, emp)
}

func (h *Handler) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req directory.UpdateEmployeeRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	emp, err := h.dir.UpdateEmployee(r.Context(), requestcontext.OrgID(r.Context()), employeeID, req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, emp)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.employeeTransition(w, r, h.dir.DeactivateEmployee)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.employeeTransition(w, r, h.dir.ReactivateEmployee)
}

func (h *Handler) employeeTransition(w http.ResponseWriter, r *http.Request,
	op func(context.Context, id.OrgID, id.EmployeeID) (*directory.Employee, error)) {

	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	emp, err := op(r.Context(), requestcontext.OrgID(r.Context()), employeeID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, emp)
}

type moveEmployeeRequest struct {
	DepartmentID string `json:"department_id"` // empty clears the assignment
}

func (h *Handler) handleMoveEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req moveEmployeeRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	var deptID id.DepartmentID
	if req.DepartmentID != "" {
		if deptID, err = id.ParseDepartmentID(req.DepartmentID); err != nil {
			shared.WriteError(w, err)
			return
		}
	}
	emp, err := h.dir.MoveEmployee(r.Context(), requestcontext.OrgID(r.Context()), employeeID, deptID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, emp)
}

type departmentRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	dept, err := h.dir.CreateDepartment(r.Context(), requestcontext.OrgID(r.Context()), req.Name, req.Description)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, dept)
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	list, err := h.dir.ListDepartments(r.Context(), requestcontext.OrgID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"departments": list})
}

func (h *Handler) handleRenameDepartment(w http.ResponseWriter, r *http.Request) {
	deptID, err := id.ParseDepartmentID(chi.URLParam(r, "departmentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req departmentRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	dept, err := h.dir.RenameDepartment(r.Context(), requestcontext.OrgID(r.Context()), deptID, req.Name, req.Description)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, dept)
}

type assignHeadRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
}

func (h *Handler) handleAssignHead(w http.ResponseWriter, r *http.Request) {
	deptID, err := id.ParseDepartmentID(chi.URLParam(r, "departmentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req assignHeadRequest
	if err := shared.DecodeValid(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	head, err := id.ParseEmployeeID(req.EmployeeID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	dept, err := h.dir.AssignHead(r.Context(), requestcontext.OrgID(r.Context()), deptID, head)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, dept)
}
