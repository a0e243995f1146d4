package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/ribera-digital/bankline/internal/cloudapi"
	"github.com/ribera-digital/bankline/internal/messaging"
	"github.com/ribera-digital/bankline/internal/models"
	"github.com/ribera-digital/bankline/internal/store"
)

const testPhone = "525512345678"

// fakeLLM replays scripted responses for flow turns. Cancel checks are
// answered separately so a script does not have to interleave them.
type fakeLLM struct {
	cancelResponse string
	queue          []string
	contexts       []string
}

func (f *fakeLLM) Respond(ctx context.Context, stateContext string, history []models.Message, userMessage string) (string, error) {
	f.contexts = append(f.contexts, stateContext)
	if strings.Contains(stateContext, "determina si desea cancelar") {
		if f.cancelResponse == "" {
			return "OK", nil
		}
		return f.cancelResponse, nil
	}
	if len(f.queue) == 0 {
		return "sin respuesta", nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, nil
}

func (f *fakeLLM) push(responses ...string) {
	f.queue = append(f.queue, responses...)
}

func newTestEngine(t *testing.T) (*Engine, *store.InMemoryStore, *cloudapi.MockClient, *fakeLLM) {
	t.Helper()
	st := store.NewInMemoryStore()
	llm := &fakeLLM{}
	mock := cloudapi.NewMockClient()
	svc := messaging.NewCloudService(mock)
	eng := NewEngine(st, llm, svc,
		WithMediaStore(svc),
		WithSendDelay(0),
	)
	return eng, st, mock, llm
}

func textTurn(text string) models.Turn {
	return models.Turn{Type: models.TurnText, Phone: testPhone, Name: "Cliente Demo", Text: text}
}

func sentBodies(mock *cloudapi.MockClient) []string {
	bodies := make([]string, 0, len(mock.Texts))
	for _, m := range mock.Texts {
		bodies = append(bodies, m.Body)
	}
	return bodies
}

func requireStatus(t *testing.T, st store.Store, want models.Status) {
	t.Helper()
	convo, err := st.FindOrCreateConversation(testPhone, "")
	if err != nil {
		t.Fatalf("loading conversation: %v", err)
	}
	if convo.Status != want {
		t.Fatalf("status = %q, want %q", convo.Status, want)
	}
}

func TestGreetingSendsWelcomeAndMenu(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	llm.push(`{"action":"saludo","message":""}`)

	if err := eng.Handle(context.Background(), textTurn("hola")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	bodies := sentBodies(mock)
	if len(bodies) != 1 || bodies[0] != msgWelcome {
		t.Errorf("unexpected replies: %v", bodies)
	}
	if len(mock.Lists) != 1 {
		t.Errorf("expected options menu, got %d lists", len(mock.Lists))
	}
	requireStatus(t, st, models.StatusIdle)
}

func TestInteractiveSelectionSkipsClassifier(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)

	turn := models.Turn{Type: models.TurnInteractive, Phone: testPhone, Name: "Cliente Demo", Text: actionMortgage}
	if err := eng.Handle(context.Background(), turn); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(llm.contexts) != 0 {
		t.Errorf("classifier should not run for menu selections, contexts: %d", len(llm.contexts))
	}
	bodies := sentBodies(mock)
	if len(bodies) != 2 || bodies[0] != msgQuoteMortgageIntro || bodies[1] != msgQuoteAskProperty {
		t.Errorf("unexpected replies: %v", bodies)
	}
	requireStatus(t, st, models.StatusMortgageQuote)
}

func TestQuoteAccumulatesFieldsAcrossTurns(t *testing.T) {
	eng, st, _, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"automotriz","message":""}`)
	if err := eng.Handle(ctx, textTurn("quiero un crédito para mi auto")); err != nil {
		t.Fatalf("start turn failed: %v", err)
	}

	llm.push(`{"Marca":"Nissan","Modelo":"Versa","Mensaje":"¿De qué año es tu Versa?"}`)
	if err := eng.Handle(ctx, textTurn("es un Nissan Versa")); err != nil {
		t.Fatalf("first fill turn failed: %v", err)
	}

	// The model must never clear known fields; an omitted key stays stored.
	llm.push(`{"Año":2021,"Mensaje":"¿Cuál es el precio del vehículo?"}`)
	if err := eng.Handle(ctx, textTurn("2021")); err != nil {
		t.Fatalf("second fill turn failed: %v", err)
	}

	rec, err := st.FindOrCreateFlow(models.FlowQuote, testPhone, nil)
	if err != nil {
		t.Fatalf("loading quote record: %v", err)
	}
	for col, want := range map[string]string{"brand": "Nissan", "model": "Versa", "year": "2021"} {
		if got := rec.Field(col); got != want {
			t.Errorf("field %s = %q, want %q", col, got, want)
		}
	}
	if rec.Complete(autoQuoteFields...) {
		t.Error("record should not be complete without price and term")
	}
	requireStatus(t, st, models.StatusAutoQuote)
}

func TestQuoteCompletionDeliversPDF(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"automotriz","message":""}`)
	if err := eng.Handle(ctx, textTurn("crédito automotriz")); err != nil {
		t.Fatalf("start turn failed: %v", err)
	}
	llm.push(`{"Marca":"Nissan","Modelo":"Versa","Año":"2021","Precio":350000,"Plazo":36,"Mensaje":"En un momento recibirás tu cotización en PDF."}`)
	if err := eng.Handle(ctx, textTurn("Nissan Versa 2021, 350 mil, 36 meses")); err != nil {
		t.Fatalf("completion turn failed: %v", err)
	}

	if len(mock.Uploads) != 1 {
		t.Fatalf("expected one media upload, got %d", len(mock.Uploads))
	}
	if mock.Uploads[0].MimeType != "application/pdf" {
		t.Errorf("unexpected upload mime type %q", mock.Uploads[0].MimeType)
	}
	if len(mock.Documents) != 1 || mock.Documents[0].Filename != "Cotización automotriz.pdf" {
		t.Errorf("unexpected document send: %v", mock.Documents)
	}
	bodies := sentBodies(mock)
	if bodies[len(bodies)-1] != msgQuoteFollowUp {
		t.Errorf("missing follow-up offer, replies: %v", bodies)
	}
	// The quote stays open for document validation.
	requireStatus(t, st, models.StatusAutoQuote)
}

func TestQuoteDocumentGateAndClosing(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"hipotecario","message":""}`)
	if err := eng.Handle(ctx, textTurn("crédito hipotecario")); err != nil {
		t.Fatalf("start turn failed: %v", err)
	}
	llm.push(`{"Precio":1500000,"CP":"06700","Plazo":20,"Mensaje":"Tu cotización va en camino."}`)
	if err := eng.Handle(ctx, textTurn("1.5 millones, CP 06700, 20 años")); err != nil {
		t.Fatalf("completion turn failed: %v", err)
	}

	// Conversational answer: parse fails, record complete, the document
	// checklist takes over and asks for the INE first.
	llm.push("Claro, vamos a validar tus documentos.", "Por favor envíanos tu identificación oficial (INE).")
	if err := eng.Handle(ctx, textTurn("sí, quiero completar la solicitud")); err != nil {
		t.Fatalf("doc gate turn failed: %v", err)
	}
	bodies := sentBodies(mock)
	if !strings.Contains(bodies[len(bodies)-1], "INE") {
		t.Errorf("expected INE prompt, got %q", bodies[len(bodies)-1])
	}

	// Load all three documents, then any message completes the request.
	for _, docType := range []string{models.DocID, models.DocProofOfAddress, models.DocProofOfIncome} {
		if _, err := st.SaveDocument(models.Document{Phone: testPhone, Type: docType, Data: []byte("x")}); err != nil {
			t.Fatalf("seeding document: %v", err)
		}
	}
	rec, _ := st.FindOrCreateFlow(models.FlowQuote, testPhone, nil)
	llm.push("Perfecto, revisemos.")
	if err := eng.Handle(ctx, textTurn("listo")); err != nil {
		t.Fatalf("closing turn failed: %v", err)
	}

	bodies = sentBodies(mock)
	foundTracking := false
	for _, b := range bodies {
		if strings.Contains(b, "número de seguimiento") {
			foundTracking = true
			if !strings.Contains(b, "con el número de seguimiento") {
				t.Errorf("unexpected tracking message %q", b)
			}
		}
	}
	if !foundTracking {
		t.Errorf("missing tracking message, replies: %v", bodies)
	}
	requireStatus(t, st, models.StatusIdle)

	// The old record is closed; a fresh flow starts from an empty record.
	fresh, err := st.FindOrCreateFlow(models.FlowQuote, testPhone, nil)
	if err != nil {
		t.Fatalf("reopening flow: %v", err)
	}
	if fresh.ID == rec.ID {
		t.Error("closed record was reused")
	}
}

func TestCancelMidFlowClosesEverything(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"automotriz","message":""}`)
	if err := eng.Handle(ctx, textTurn("cotiza mi auto")); err != nil {
		t.Fatalf("start turn failed: %v", err)
	}
	rec, _ := st.FindOrCreateFlow(models.FlowQuote, testPhone, nil)

	llm.cancelResponse = `{"action":"cancel","message":"Operación cancelada. ¿En qué más te ayudo?"}`
	if err := eng.Handle(ctx, textTurn("mejor olvídalo")); err != nil {
		t.Fatalf("cancel turn failed: %v", err)
	}

	requireStatus(t, st, models.StatusIdle)
	bodies := sentBodies(mock)
	if bodies[len(bodies)-1] != "Operación cancelada. ¿En qué más te ayudo?" {
		t.Errorf("unexpected cancel reply: %v", bodies[len(bodies)-1])
	}
	fresh, _ := st.FindOrCreateFlow(models.FlowQuote, testPhone, nil)
	if fresh.ID == rec.ID {
		t.Error("cancel did not close the quote record")
	}
}

func TestCancelSkippedWhenIdle(t *testing.T) {
	eng, _, _, llm := newTestEngine(t)
	llm.cancelResponse = `{"action":"cancel","message":"no debería usarse"}`
	llm.push(`{"action":"saludo","message":""}`)

	if err := eng.Handle(context.Background(), textTurn("hola")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	for _, c := range llm.contexts {
		if strings.Contains(c, "determina si desea cancelar") {
			t.Error("cancel interceptor ran on an idle conversation")
		}
	}
}

func TestBlockedCardReportRunsSameTurn(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	// The report has no fixed greeting; the first model turn answers the
	// report message directly and the complete report closes immediately.
	llm.push(`{"action":"reportar_tarjeta_extraviada","message":""}`)
	llm.push(`{"Number":"5554","Tipo":"débito","Mensaje":"Tu tarjeta de débito ****5554 quedó bloqueada."}`)
	if err := eng.Handle(ctx, textTurn("perdí mi tarjeta de débito terminación 5554")); err != nil {
		t.Fatalf("report turn failed: %v", err)
	}

	reports, err := st.ListCardReports()
	if err != nil {
		t.Fatalf("listing reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected one card report, got %d", len(reports))
	}
	if reports[0].CardNumber != "5554" || reports[0].CardType != "débito" || reports[0].Status != models.CardReportNew {
		t.Errorf("unexpected report: %+v", reports[0])
	}
	bodies := sentBodies(mock)
	if bodies[len(bodies)-1] != msgAnything || bodies[len(bodies)-2] != msgBlockedCardUnblock {
		t.Errorf("unexpected closing sequence: %v", bodies)
	}
	requireStatus(t, st, models.StatusIdle)
}

func TestPayrollAdvanceStageWalk(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"adelanto_nomina","message":""}`)
	if err := eng.Handle(ctx, textTurn("quiero un adelanto")); err != nil {
		t.Fatalf("start turn failed: %v", err)
	}

	steps := []struct {
		response string
		want     string
	}{
		{`{"advance":"true"}`, msgAdvanceTerm},
		{`{"advance":"true"}`, msgAdvanceProceed},
		{`{"advance":"true"}`, msgSignatureLink + DefaultSigningURL + testPhone},
	}
	for i, step := range steps {
		llm.push(step.response)
		if err := eng.Handle(ctx, textTurn("ok")); err != nil {
			t.Fatalf("stage turn %d failed: %v", i, err)
		}
		bodies := sentBodies(mock)
		if bodies[len(bodies)-1] != step.want {
			t.Errorf("stage %d reply = %q, want %q", i, bodies[len(bodies)-1], step.want)
		}
	}

	// The counter is clamped: another confirmation replays the final stage.
	llm.push(`{"advance":"true"}`)
	if err := eng.Handle(ctx, textTurn("ok")); err != nil {
		t.Fatalf("clamped turn failed: %v", err)
	}
	rec, _ := st.FindOrCreateFlow(models.FlowStaged, testPhone, nil)
	if rec.Stage != advanceMaxStage {
		t.Errorf("stage = %d, want clamp at %d", rec.Stage, advanceMaxStage)
	}
	requireStatus(t, st, models.StatusPayrollAdvance)

	// The signature closes the flow and confirms the disbursement.
	if err := eng.CompleteSignature(ctx, testPhone); err != nil {
		t.Fatalf("CompleteSignature failed: %v", err)
	}
	bodies := sentBodies(mock)
	if bodies[len(bodies)-2] != msgAdvanceDisbursed {
		t.Errorf("missing disbursement message: %v", bodies[len(bodies)-3:])
	}
	requireStatus(t, st, models.StatusIdle)
}

func TestUtilityPaymentCompletes(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"pagar_luz","message":""}`)
	if err := eng.Handle(ctx, textTurn("quiero pagar la luz")); err != nil {
		t.Fatalf("start turn failed: %v", err)
	}

	validReplies := []string{
		`{"advance":"true"}`, // amount -> stage 2
		`{"advance":"true"}`, // account -> stage 3
		`{"advance":"true"}`, // password prompt -> stage 4
		`{"advance":"true"}`, // confirmation -> stage 5, closes
	}
	for i, resp := range validReplies {
		llm.push(resp)
		if err := eng.Handle(ctx, textTurn("sí")); err != nil {
			t.Fatalf("stage turn %d failed: %v", i, err)
		}
	}

	bodies := sentBodies(mock)
	if bodies[len(bodies)-2] != msgUtilityDone || bodies[len(bodies)-1] != msgAnything {
		t.Errorf("unexpected closing sequence: %v", bodies[len(bodies)-2:])
	}
	requireStatus(t, st, models.StatusIdle)

	// Closing is exact-once: the record is gone.
	fresh, _ := st.FindOrCreateFlow(models.FlowStaged, testPhone, nil)
	if fresh.Stage != 1 {
		t.Errorf("fresh staged record stage = %d, want 1", fresh.Stage)
	}
}

func TestUtilityInvalidReplyRelaysText(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"pagar_luz","message":""}`)
	if err := eng.Handle(ctx, textTurn("pagar luz")); err != nil {
		t.Fatalf("start turn failed: %v", err)
	}
	llm.push("¿Podrías confirmarme si ese es el servicio que deseas pagar?")
	if err := eng.Handle(ctx, textTurn("no sé")); err != nil {
		t.Fatalf("invalid reply turn failed: %v", err)
	}

	rec, _ := st.FindOrCreateFlow(models.FlowStaged, testPhone, nil)
	if rec.Stage != 1 {
		t.Errorf("stage advanced on invalid reply: %d", rec.Stage)
	}
	bodies := sentBodies(mock)
	if !strings.Contains(bodies[len(bodies)-1], "confirmarme") {
		t.Errorf("expected relayed text, got %q", bodies[len(bodies)-1])
	}
}

func TestNewAccountSignatureHandOff(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"abrir_cuenta","message":""}`)
	if err := eng.Handle(ctx, textTurn("quiero abrir una cuenta")); err != nil {
		t.Fatalf("start turn failed: %v", err)
	}

	// Documents are on file so the checklist does not interrupt.
	for _, docType := range []string{models.DocID, models.DocProofOfAddress, models.DocPhoto} {
		if _, err := st.SaveDocument(models.Document{Phone: testPhone, Type: docType, Data: []byte("x")}); err != nil {
			t.Fatalf("seeding document: %v", err)
		}
	}

	llm.push(`{"Nuevo":"no","Tipo":"nómina","Profesion":"ingeniera","Transacciones":"20","Monto":"15000","PEP":"no","Mensaje":"Gracias"}`)
	if err := eng.Handle(ctx, textTurn("soy ingeniera, cuenta de nómina, 20 transacciones de unos 15000, no PEP, no tengo cuenta")); err != nil {
		t.Fatalf("fill turn failed: %v", err)
	}

	bodies := sentBodies(mock)
	if bodies[len(bodies)-2] != msgNewAccountReady {
		t.Errorf("missing signature request: %v", bodies[len(bodies)-2:])
	}
	if !strings.HasPrefix(bodies[len(bodies)-1], msgSignatureLink) || !strings.HasSuffix(bodies[len(bodies)-1], testPhone) {
		t.Errorf("unexpected signature link: %q", bodies[len(bodies)-1])
	}
	// The account flow must stay open until the signature arrives.
	requireStatus(t, st, models.StatusNewAccount)

	if err := eng.CompleteSignature(ctx, testPhone); err != nil {
		t.Fatalf("CompleteSignature failed: %v", err)
	}
	bodies = sentBodies(mock)
	if bodies[len(bodies)-2] != msgAccountCongrats {
		t.Errorf("missing account congratulation: %v", bodies[len(bodies)-2:])
	}
	requireStatus(t, st, models.StatusIdle)
}

func TestMediaStoredUnderFirstMissingDocument(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"abrir_cuenta","message":""}`)
	if err := eng.Handle(ctx, textTurn("abrir cuenta")); err != nil {
		t.Fatalf("start turn failed: %v", err)
	}
	if _, err := st.SaveDocument(models.Document{Phone: testPhone, Type: models.DocID, Data: []byte("x")}); err != nil {
		t.Fatalf("seeding document: %v", err)
	}

	mock.Media["media-55"] = []byte("recibo cfe")
	turn := models.Turn{Type: models.TurnImage, Phone: testPhone, MediaID: "media-55", MimeType: "image/jpeg"}
	llm.push(`{"Mensaje":"Recibido, ¿qué tipo de cuenta deseas?"}`)
	if err := eng.Handle(ctx, turn); err != nil {
		t.Fatalf("media turn failed: %v", err)
	}

	// ID is already on file, so the upload lands on proof of address.
	has, err := st.HasDocument(testPhone, models.DocProofOfAddress)
	if err != nil || !has {
		t.Fatalf("proof of address not stored (has=%v err=%v)", has, err)
	}
	bodies := sentBodies(mock)
	acked := false
	for _, b := range bodies {
		if b == "Gracias, hemos recibido tu "+models.DocProofOfAddress+"." {
			acked = true
		}
	}
	if !acked {
		t.Errorf("missing receipt acknowledgement: %v", bodies)
	}
}

func TestMovementsSummarySameTurn(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"resumen_movimientos","message":""}`)
	llm.push(`{"finalMessage":"Aquí está tu resumen de movimientos:"}`)
	if err := eng.Handle(ctx, textTurn("muéstrame mis movimientos")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	bodies := sentBodies(mock)
	if len(bodies) < 4 {
		t.Fatalf("expected summary sequence, got %v", bodies)
	}
	if !strings.Contains(bodies[1], "WalMart Insurgentes") {
		t.Errorf("missing movement list: %q", bodies[1])
	}
	requireStatus(t, st, models.StatusIdle)
}

func TestUnblockIsOneShot(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	llm.push(`{"action":"desbloquear_tarjeta_extraviada","message":""}`)

	if err := eng.Handle(context.Background(), textTurn("desbloquea mi tarjeta")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	bodies := sentBodies(mock)
	if len(bodies) != 1 || bodies[0] != msgUnblockDone {
		t.Errorf("unexpected replies: %v", bodies)
	}
	requireStatus(t, st, models.StatusIdle)
}

func TestFlushDataAction(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	if _, err := st.SaveDocument(models.Document{Phone: testPhone, Type: models.DocID, Data: []byte("x")}); err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	llm.push(`{"action":"borrar_todo","message":""}`)
	if err := eng.Handle(ctx, textTurn("borra mis datos")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	has, err := st.HasDocument(testPhone, models.DocID)
	if err != nil {
		t.Fatalf("checking document: %v", err)
	}
	if has {
		t.Error("documents survived the flush")
	}
	bodies := sentBodies(mock)
	if bodies[len(bodies)-1] != msgDataFlushed {
		t.Errorf("unexpected replies: %v", bodies)
	}
}

func TestStatementCopyDeliversDocument(t *testing.T) {
	eng, st, mock, llm := newTestEngine(t)
	ctx := context.Background()

	llm.push(`{"action":"copia_estado_cuenta","message":""}`)
	if err := eng.Handle(ctx, textTurn("quiero mi estado de cuenta")); err != nil {
		t.Fatalf("start turn failed: %v", err)
	}
	bodies := sentBodies(mock)
	if bodies[len(bodies)-1] != msgStatementIntro {
		t.Errorf("expected key prompt, got %v", bodies)
	}

	if err := eng.Handle(ctx, textTurn("clave123")); err != nil {
		t.Fatalf("delivery turn failed: %v", err)
	}
	if len(mock.Documents) != 1 || mock.Documents[0].Filename != statementFilename {
		t.Errorf("unexpected document send: %v", mock.Documents)
	}
	requireStatus(t, st, models.StatusIdle)
}

func TestParseFieldUpdateDropsEmptyValues(t *testing.T) {
	update, ok := ParseFieldUpdate(`{"Marca":"Nissan","Modelo":"","Año":null,"Precio":350000,"Mensaje":"ok"}`, quoteKeys)
	if !ok {
		t.Fatal("expected parse success")
	}
	if update.Fields["brand"] != "Nissan" {
		t.Errorf("brand = %q", update.Fields["brand"])
	}
	if _, present := update.Fields["model"]; present {
		t.Error("empty model should be dropped")
	}
	if _, present := update.Fields["year"]; present {
		t.Error("null year should be dropped")
	}
	if update.Fields["price"] != "350000" {
		t.Errorf("price = %q", update.Fields["price"])
	}
}

func TestParseFieldUpdateRejectsNonConforming(t *testing.T) {
	if _, ok := ParseFieldUpdate("Claro, con gusto te ayudo.", quoteKeys); ok {
		t.Error("plain text should not parse")
	}
	if _, ok := ParseFieldUpdate(`{"otra":"cosa"}`, quoteKeys); ok {
		t.Error("object without known keys should not parse")
	}
	if _, ok := ParseFieldUpdate("```json\n{\"Marca\":\"Nissan\"}\n```", quoteKeys); !ok {
		t.Error("fenced JSON should parse after cleaning")
	}
}
