package executor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finsight/internal/dataset"
	"finsight/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	analyst = types.User{ID: "user_001", Name: "Priya Sharma", Role: types.RoleFinancialAnalyst, WorkspaceID: "ws_001"}

	testNow = time.Date(2024, 9, 15, 10, 0, 0, 0, time.UTC)
)

type fakePersister struct {
	saved []types.Ticket
	fail  bool
}

func (f *fakePersister) SaveTicket(t types.Ticket) error {
	if f.fail {
		return errors.New("disk full")
	}
	f.saved = append(f.saved, t)
	return nil
}

func newTestData(t *testing.T) *dataset.Store {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"invoices.json": `{"invoices": [
			{"id": "inv_001", "invoice_number": "IS-2024-001", "vendor": "IndiSky", "amount": 125000, "currency": "INR", "status": "failed", "failure_reason": "missing_gstin", "date": "2024-08-05", "workspace_id": "ws_001"},
			{"id": "inv_002", "invoice_number": "IS-2024-002", "vendor": "IndiSky", "amount": 75500, "currency": "INR", "status": "failed", "failure_reason": "missing_gstin", "date": "2024-08-20", "workspace_id": "ws_001"},
			{"id": "inv_003", "invoice_number": "IS-2024-003", "vendor": "IndiSky", "amount": 89500, "currency": "INR", "status": "processed", "gstin": "29AABCI1234F1Z5", "date": "2024-08-12", "workspace_id": "ws_001"},
			{"id": "inv_004", "invoice_number": "CT-2024-101", "vendor": "CloudTech", "amount": 45000, "currency": "INR", "status": "failed", "failure_reason": "expired_po", "date": "2024-08-15", "workspace_id": "ws_001"},
			{"id": "inv_005", "invoice_number": "CT-2024-102", "vendor": "CloudTech", "amount": 32000, "currency": "INR", "status": "processed", "date": "2024-09-03", "workspace_id": "ws_001"},
			{"id": "inv_006", "invoice_number": "IS-2024-009", "vendor": "IndiSky", "amount": 99000, "currency": "INR", "status": "failed", "failure_reason": "missing_gstin", "date": "2024-08-10", "workspace_id": "ws_002"}
		]}`,
		"vendors.json": `{"vendors": [
			{"id": "ven_001", "name": "IndiSky", "gstin": "29AABCI1234F1Z5"},
			{"id": "ven_002", "name": "CloudTech"}
		]}`,
		"users.json": `{"users": [
			{"id": "user_001", "name": "Priya Sharma", "role": "financial_analyst", "workspace_id": "ws_001"}
		]}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	data, err := dataset.Load(dir)
	require.NoError(t, err)
	return data
}

func newTestExecutor(t *testing.T) (*Executor, *fakePersister) {
	t.Helper()
	p := &fakePersister{}
	return New(newTestData(t), p, func() time.Time { return testNow }), p
}

func TestFilterInvoicesConjunctive(t *testing.T) {
	e, _ := newTestExecutor(t)

	result := e.Execute(analyst, types.ResolvedAction{
		Kind: types.ActionFilterInvoices,
		Slots: types.Slots{
			Vendor:    "IndiSky",
			Status:    "failed",
			DateRange: &types.DateRange{Start: "2024-08-01", End: "2024-08-31"},
		},
	}, Referents{})

	require.Equal(t, types.ResultOK, result.Kind)
	// inv_006 is in another workspace; inv_003 is processed.
	assert.Equal(t, []string{"inv_001", "inv_002"}, result.InvoiceIDs)
	assert.Contains(t, result.Response, "I found 2 invoices")
	assert.Contains(t, result.Response, "from IndiSky")
	assert.Contains(t, result.Response, "₹200,500.00")
	assert.Contains(t, result.Response, "missing gstin")
}

func TestFilterInvoicesKeepsSourceOrder(t *testing.T) {
	e, _ := newTestExecutor(t)

	action := types.ResolvedAction{
		Kind:  types.ActionFilterInvoices,
		Slots: types.Slots{Status: "failed"},
	}
	first := e.Execute(analyst, action, Referents{})
	require.Equal(t, types.ResultOK, first.Kind)
	// Dataset insertion order, not date order.
	assert.Equal(t, []string{"inv_001", "inv_002", "inv_004"}, first.InvoiceIDs)

	for i := 0; i < 3; i++ {
		again := e.Execute(analyst, action, Referents{})
		assert.Equal(t, first.InvoiceIDs, again.InvoiceIDs)
	}
}

func TestFilterInvoicesDoesNotSortByDate(t *testing.T) {
	dir := t.TempDir()

	// Insertion order deliberately out of date order.
	files := map[string]string{
		"invoices.json": `{"invoices": [
			{"id": "inv_b", "invoice_number": "B-1", "vendor": "IndiSky", "amount": 100, "currency": "INR", "status": "failed", "failure_reason": "missing_gstin", "date": "2024-08-20", "workspace_id": "ws_001"},
			{"id": "inv_a", "invoice_number": "A-1", "vendor": "IndiSky", "amount": 200, "currency": "INR", "status": "failed", "failure_reason": "missing_gstin", "date": "2024-08-05", "workspace_id": "ws_001"},
			{"id": "inv_c", "invoice_number": "C-1", "vendor": "IndiSky", "amount": 300, "currency": "INR", "status": "failed", "failure_reason": "missing_gstin", "date": "2024-08-12", "workspace_id": "ws_001"}
		]}`,
		"vendors.json": `{"vendors": [{"id": "ven_001", "name": "IndiSky"}]}`,
		"users.json":   `{"users": [{"id": "user_001", "name": "Priya Sharma", "role": "financial_analyst", "workspace_id": "ws_001"}]}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	data, err := dataset.Load(dir)
	require.NoError(t, err)
	e := New(data, &fakePersister{}, func() time.Time { return testNow })

	result := e.Execute(analyst, types.ResolvedAction{
		Kind:  types.ActionFilterInvoices,
		Slots: types.Slots{Status: "failed"},
	}, Referents{})

	require.Equal(t, types.ResultOK, result.Kind)
	assert.Equal(t, []string{"inv_b", "inv_a", "inv_c"}, result.InvoiceIDs)
}

func TestFilterInvoicesAmount(t *testing.T) {
	e, _ := newTestExecutor(t)

	result := e.Execute(analyst, types.ResolvedAction{
		Kind:  types.ActionFilterInvoices,
		Slots: types.Slots{Amount: &types.AmountFilter{Op: ">", Value: 100000}},
	}, Referents{})

	require.Equal(t, types.ResultOK, result.Kind)
	assert.Equal(t, []string{"inv_001"}, result.InvoiceIDs)
}

func TestFilterInvoicesEmptyIsNotAnError(t *testing.T) {
	e, _ := newTestExecutor(t)

	result := e.Execute(analyst, types.ResolvedAction{
		Kind:  types.ActionFilterInvoices,
		Slots: types.Slots{Vendor: "NoSuchVendor"},
	}, Referents{})

	assert.Equal(t, types.ResultEmpty, result.Kind)
	assert.Equal(t, "No invoices found matching your criteria.", result.Response)
	assert.Empty(t, result.InvoiceIDs)
}

func TestFilterInvoicesInvalidSlots(t *testing.T) {
	e, _ := newTestExecutor(t)

	tests := []struct {
		name  string
		slots types.Slots
		want  string
	}{
		{"reversed range", types.Slots{DateRange: &types.DateRange{Start: "2024-09-01", End: "2024-08-01"}}, "date range"},
		{"malformed date", types.Slots{DateRange: &types.DateRange{Start: "2024-13-99", End: "2024-08-01"}}, "date range"},
		{"unknown status", types.Slots{Status: "exploded"}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Execute(analyst, types.ResolvedAction{Kind: types.ActionFilterInvoices, Slots: tt.slots}, Referents{})
			assert.Equal(t, types.ResultInvalid, result.Kind)
			assert.Contains(t, result.Response, tt.want)
		})
	}
}

func TestFilterInvoicesInclusiveBounds(t *testing.T) {
	e, _ := newTestExecutor(t)

	// Range equal to the earliest and latest failed IndiSky dates.
	result := e.Execute(analyst, types.ResolvedAction{
		Kind: types.ActionFilterInvoices,
		Slots: types.Slots{
			Vendor:    "IndiSky",
			DateRange: &types.DateRange{Start: "2024-08-05", End: "2024-08-20"},
		},
	}, Referents{})

	require.Equal(t, types.ResultOK, result.Kind)
	assert.Equal(t, []string{"inv_001", "inv_002", "inv_003"}, result.InvoiceIDs)
}

func TestExplainFailuresSingleReason(t *testing.T) {
	e, _ := newTestExecutor(t)

	result := e.Execute(analyst, types.ResolvedAction{Kind: types.ActionExplainFailures}, Referents{
		LastResultSet: []string{"inv_001", "inv_002"},
	})

	require.Equal(t, types.ResultOK, result.Kind)
	assert.Contains(t, result.Response, "All 2 invoices failed because GSTIN")
	assert.Contains(t, result.Response, "B2B transactions above ₹500")
	assert.Contains(t, result.Response, "IS-2024-001, IS-2024-002")
	assert.Contains(t, result.Response, "Would you like me to create a ticket")
	assert.True(t, result.OfferTicket)

	require.NotNil(t, result.Analysis)
	assert.Equal(t, 2, result.Analysis.TotalInvoices)
	assert.Equal(t, 200500.0, result.Analysis.TotalAmount)
	assert.Equal(t, []string{"IndiSky"}, result.Analysis.AffectedVendors)
}

func TestExplainFailuresMultipleReasons(t *testing.T) {
	e, _ := newTestExecutor(t)

	result := e.Execute(analyst, types.ResolvedAction{Kind: types.ActionExplainFailures}, Referents{
		LastResultSet: []string{"inv_001", "inv_004"},
	})

	require.Equal(t, types.ResultOK, result.Kind)
	assert.Contains(t, result.Response, "failed for different reasons")
	assert.Contains(t, result.Response, "1 invoice: missing gstin")
	assert.Contains(t, result.Response, "1 invoice: expired po")
	assert.True(t, result.OfferTicket, "missing_gstin in the mix still offers a ticket")
}

func TestExplainFailuresNoReferent(t *testing.T) {
	e, _ := newTestExecutor(t)

	result := e.Execute(analyst, types.ResolvedAction{Kind: types.ActionExplainFailures}, Referents{})

	assert.Equal(t, types.ResultInvalid, result.Kind)
	assert.Contains(t, result.Response, "filter some invoices first")
}

func TestExplainFailuresNoRecordedReason(t *testing.T) {
	e, _ := newTestExecutor(t)

	result := e.Execute(analyst, types.ResolvedAction{Kind: types.ActionExplainFailures}, Referents{
		LastResultSet: []string{"inv_003", "inv_005"},
	})

	require.Equal(t, types.ResultOK, result.Kind)
	assert.Contains(t, result.Response, "no recorded failure reason")
	assert.False(t, result.OfferTicket)
}

func TestCreateTicketFromAnalysis(t *testing.T) {
	e, p := newTestExecutor(t)

	analysis := &types.FailureAnalysis{
		TotalInvoices:   2,
		TotalAmount:     200500,
		FailureReasons:  map[string]int{types.FailureMissingGSTIN: 2},
		AffectedVendors: []string{"IndiSky"},
	}
	result := e.Execute(analyst, types.ResolvedAction{
		Kind:  types.ActionCreateTicket,
		Slots: types.Slots{Notify: true},
	}, Referents{
		LastResultSet: []string{"inv_001", "inv_002"},
		LastAnalysis:  analysis,
	})

	require.Equal(t, types.ResultOK, result.Kind)
	require.NotNil(t, result.Ticket)
	assert.True(t, result.Mutated())

	tk := result.Ticket
	assert.Regexp(t, `^TKT-2024-[0-9A-F]{3}$`, tk.ID)
	assert.Equal(t, "Missing GSTIN in vendor invoices", tk.Title)
	assert.Contains(t, tk.Description, "2 invoices from IndiSky")
	assert.Contains(t, tk.Description, "₹200,500.00")
	assert.Equal(t, "high", tk.Priority)
	assert.Equal(t, types.TicketOpen, tk.Status)
	assert.True(t, tk.Notify)
	assert.Equal(t, []string{"inv_001", "inv_002"}, tk.AffectedInvoices)
	assert.Equal(t, "ws_001", tk.WorkspaceID)

	assert.Contains(t, result.Response, tk.ID)
	assert.Contains(t, result.Response, "I'll notify you")

	// Persisted and visible in the dataset.
	require.Len(t, p.saved, 1)
	_, ok := e.data.TicketByID(tk.ID)
	assert.True(t, ok)
}

func TestCreateTicketWithoutContext(t *testing.T) {
	e, _ := newTestExecutor(t)

	result := e.Execute(analyst, types.ResolvedAction{Kind: types.ActionCreateTicket}, Referents{})

	require.Equal(t, types.ResultOK, result.Kind)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, "General Support Request", result.Ticket.Title)
	assert.Equal(t, "medium", result.Ticket.Priority)
	assert.NotContains(t, result.Response, "I'll notify you")
}

func TestCreateTicketAtomicOnPersistFailure(t *testing.T) {
	e, p := newTestExecutor(t)
	p.fail = true

	result := e.Execute(analyst, types.ResolvedAction{Kind: types.ActionCreateTicket}, Referents{})

	assert.Equal(t, types.ResultInvalid, result.Kind)
	assert.Nil(t, result.Ticket)
	assert.Contains(t, result.Response, "nothing was created")
	assert.Empty(t, e.data.Tickets("ws_001", ""), "failed creation must leave no partial record")
}

func TestDownloadComplianceReport(t *testing.T) {
	e, _ := newTestExecutor(t)

	// Vendor inherited from the last filter; current month is 2024-09.
	result := e.Execute(analyst, types.ResolvedAction{
		Kind:  types.ActionDownloadReport,
		Slots: types.Slots{ReportType: "compliance_status"},
	}, Referents{
		LastFilterSlots: types.Slots{Vendor: "CloudTech"},
	})

	require.Equal(t, types.ResultOK, result.Kind)
	require.NotNil(t, result.Report)
	assert.Equal(t, "CloudTech_Compliance_Report_Sep2024.pdf", result.Report.Name)
	assert.Equal(t, 1, result.Report.Summary.TotalInvoices)
	assert.Equal(t, 1, result.Report.Summary.ProcessedInvoices)
	assert.Equal(t, 0, result.Report.Summary.FailedInvoices)
	assert.Equal(t, 100.0, result.Report.Summary.ComplianceRate)
	assert.Contains(t, result.Response, "1 invoice processed")
	assert.Contains(t, result.Response, "₹32,000")
}

func TestDownloadReportWithoutVendorContext(t *testing.T) {
	e, _ := newTestExecutor(t)

	result := e.Execute(analyst, types.ResolvedAction{
		Kind:  types.ActionDownloadReport,
		Slots: types.Slots{ReportType: "compliance_status"},
	}, Referents{})

	require.Equal(t, types.ResultOK, result.Kind)
	assert.Equal(t, "Compliance_Report_Sep2024.pdf", result.Report.Name)
	// Only inv_005 falls in September for ws_001.
	assert.Equal(t, 1, result.Report.Summary.TotalInvoices)
}

func TestGeneralQuestion(t *testing.T) {
	e, _ := newTestExecutor(t)

	result := e.Execute(analyst, types.ResolvedAction{Kind: types.ActionGeneralQuestion}, Referents{})

	require.Equal(t, types.ResultOK, result.Kind)
	assert.Contains(t, result.Response, "Filtering invoices")
	assert.Contains(t, result.Response, "Downloading reports")
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "₹0.00"},
		{500, "₹500.00"},
		{1234.5, "₹1,234.50"},
		{200500, "₹200,500.00"},
		{12345678.9, "₹12,345,678.90"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAmount(tt.amount))
	}
}
