package flow

import (
	"fmt"
	"strings"

	"github.com/ribera-digital/bankline/internal/models"
)

// Fixed assistant replies. These are part of the observable conversation
// contract, so wording changes are breaking changes for anyone scripting
// against the assistant.
const (
	msgWelcome  = "Bienvenido al asistente IA de Banorte. Dime ¿en qué puedo ayudarte hoy?"
	msgFarewell = "Que tengas excelente día."
	msgAnything = "¿Hay algo más en lo que te pueda ayudar?"

	msgUnsupportedType = "En este momento solamente soy capaz de entender mensajes de texto, podrías por favor explicarme en que te puedo ayudar con un mensaje escrito?"
	msgMediaError      = "Lo siento, hubo un problema procesando tu archivo. Por favor, inténtalo de nuevo."

	msgQuoteAutoIntro     = "Entiendo, en Banorte contamos con el crédito automotriz que necesitas."
	msgQuoteMortgageIntro = "Entiendo, en Banorte contamos con el crédito hipotecario que necesitas."
	msgQuoteAskVehicle    = "Indícame por favor el valor del vehículo."
	msgQuoteAskProperty   = "Indícame por favor el valor del inmueble."
	msgQuoteFollowUp      = "¿Te gustaría completar la solicitud? Es un proceso corto de validación."
	msgQuoteDocsComplete  = "Ya se tienen tus documentos en base de datos.\nTu proceso de solicitud se ha completado con el número de seguimiento %d"
	msgQuoteApproved      = "¡Felicidades! Tu crédito ha sido pre-aprobado. Por favor acude a tu sucursal más cercana con tu identificación oficial y el número de seguimiento para completar el proceso."
	msgAnythingElse       = "Hay algo más en lo que te pueda ayudar?"

	msgNewAccountIntro   = "Claro, con mucho gusto puedo ayudarte. Empecemos: ¿Tienes alguna cuenta con Banorte?"
	msgNewAccountReady   = "Gracias! Tu cuenta está lista. Por favor coloca tu firma en el formulario del siguiente link para la apertura de tu cuenta."
	msgSignatureLink     = "Link al formulario de firma: "
	msgSignatureSaved    = "Tu firma ha sido guardada con exito!"
	msgAccountCongrats   = "¡Felicidades! Eres oficialmente miembro de la familia Saptibank. Puedes recoger tu tarjeta física directamente en sucursal, también podrás utilizar tu tarjeta virtual en la app. "
	msgAdvanceDisbursed  = "Felicidades, tu dinero ya está disponible en la cuenta ****5554"

	msgAdditionalCardIntro  = "Desde luego, como tarjeta adicional estará vinculada a tu cuenta ****5554. ¿Es correcto?"
	msgAdditionalCardPickup = "Recuerda que como titular la deberás recoger tú presentando tu identificación oficial."

	msgBlockedCardUnblock = "Puedes desbloquearla en cualquier momento si me lo indicas."
	msgUnblockDone        = "Por supuesto, tu tarjeta quedó desbloqueada\n¿Hay algo más en lo que te pueda ayudar?"

	msgAdvanceIntro   = "Desde luego. ¿Por qué cantidad deseas el adelanto? Te prestamos hasta 10 veces tu nómina."
	msgAdvanceTerm    = "Qué plazo deseas elegir entre 2 y 12 meses"
	msgAdvanceRate    = "La tasa de interés es del 37% CAT 40% anual. Te queda un pago mensual de $3,950.00"
	msgAdvanceProceed = "¿Deseas continuar?"
	msgAdvanceReady   = "Tu adelanto a nómina está listo. Por favor firma con tu dedo el siguiente documento para recibirlo."

	msgUtilityIntro    = "Claro. con gusto te ayudo a realizar el pago. "
	msgUtilityService  = "Tienes registrado en tu cuenta el servicio CFE 278376187231. ¿Es el que deseas pagar?"
	msgUtilityBalance  = "Tienes un saldo pendiente de $448 pesos.  ¿Quieres pagar este monto? Te recomiendo redondear la cantidad hacia arriba."
	msgUtilityAccount  = "El pago será aplicado en tu cuenta terminación ****4242. ¿Deseas proceder?"
	msgUtilityPassword = "Para continuar por favor ingresa tu clave Banorte"
	msgUtilityDone     = "Listo, tu pago ha sido aplicado con la clave de confirmación 2973298."

	msgStatementIntro   = "Desde luego, por favor indícame tu clave Banorte."
	msgStatementHeader  = "A continuación el último estado de cuenta generado:"
	msgStatementFooter  = "Si deseas conocer más detalles de tu cuenta, no dudes en hacérmelo saber."
	msgStatementError   = "Lo siento, ocurrió un error al generar tu estado de cuenta. Por favor intenta más tarde."
	msgMovementsDetails = "Si deseas conocer más detalles de tu cuenta, no dudes en hacérmelo saber."

	msgDataFlushed = "Tus datos han sido eliminados."
)

// Monthly promotions, sent as separate messages.
const (
	msgPromosHeader = "🌟 *¡Promociones Banorte!* 🌟"
	msgPromoMSI     = "💳 Hasta 24 meses sin intereses en compras participantes del Buen Fin, válido hasta el 10 de diciembre."
	msgPromoFood    = "🍽️ 10% de descuento en restaurantes seleccionados pagando con tu tarjeta Banorte."
	msgPromoTravel  = "✈️ 10% de descuento en viajes internacionales reservando con tu tarjeta Banorte."
	msgPromosFooter = "¿Hay alguna promoción de la que requieras más detalles?"
)

// movementsSummary is the demo movement list appended to the summary reply.
const movementsSummary = `Compra - WalMart Insurgentes - $2,333
Compra - OXXO - $200.00
Cargo Dom - Telmex - $999.00
Donativo - Teletón - $50.00
Compra - Liverpool Santa Fe - $3,240.00
Compra MSI - Liverpool - $18,545.00
Pago Recibido (Gracias) - $5,000.00
Compra - WalMart Coyoacán - $2,333
Compra - OXXO - $200.00
Cargo Dom - SKY - $999.00`

// jsonOnly is appended to every structured context.
const jsonOnly = "Responde UNICAMENTE con el JSON indicado, sin texto adicional, sin titulos y sin simbolos extra."

// idleContext routes a free-form message to one of the assistant actions.
func idleContext() string {
	return `El usuario no tiene ninguna operación activa. Analiza su mensaje y decide qué acción desea realizar.
Las acciones disponibles son:
- hipotecario: cotizar un crédito hipotecario
- automotriz: cotizar un crédito automotriz
- tarjeta_adicional: solicitar una tarjeta adicional
- reportar_tarjeta_extraviada: reportar una tarjeta perdida o robada
- desbloquear_tarjeta_extraviada: desbloquear una tarjeta reportada
- horarios_sucursales: horarios y ubicaciones de sucursales
- resumen_movimientos: resumen de movimientos de la cuenta
- abrir_cuenta: abrir una cuenta nueva
- desactivar_tarjeta_adicional: desactivar una tarjeta adicional
- pagar_luz: pagar el recibo de luz
- copia_estado_cuenta: obtener copia del último estado de cuenta
- adelanto_nomina: solicitar un adelanto de nómina
- ofertas_mes: conocer las promociones del mes
- borrar_todo: eliminar los datos del usuario

Si el usuario solo está saludando, usa la acción "saludo". Si se está despidiendo, usa "despedida". Si no puedes identificar ninguna acción, usa "ninguna" y escribe en el mensaje una respuesta amable preguntando en qué puedes ayudar.
Responde con un JSON con el formato {"action": "<accion>", "message": "<mensaje para el usuario>"}. ` + jsonOnly
}

// cancelContext detects an abandon intent mid-flow.
func cancelContext() string {
	return `El usuario se encuentra a la mitad de una operación. Analiza su último mensaje y determina si desea cancelar o abandonar la operación en curso.
Si el usuario desea cancelar, responde con un JSON con el formato {"action": "cancel", "message": "<mensaje breve confirmando la cancelación y preguntando en qué más puedes ayudar>"}. ` + jsonOnly + `
Si el usuario NO desea cancelar, responde unicamente con la palabra OK.`
}

// quoteContext drives the credit quote slot filling.
func quoteContext(category string, rec models.FlowRecord) string {
	var b strings.Builder
	if category == models.QuoteAuto {
		b.WriteString(`Estás ayudando a un cliente a cotizar un crédito automotriz. Necesitas recolectar los siguientes datos:
- Marca: la marca del vehículo (ejemplo: Nissan, Toyota, BMW)
- Modelo: el modelo del vehículo (ejemplo: Versa, Corolla)
- Año: el año del vehículo (ejemplo: 2021)
- Precio: el precio del vehículo en pesos (ejemplo: 350000)
- Plazo: el plazo del crédito en meses, las opciones son 12, 24 o 36 meses
`)
	} else {
		b.WriteString(`Estás ayudando a un cliente a cotizar un crédito hipotecario. Necesitas recolectar los siguientes datos:
- Precio: el valor del inmueble en pesos (ejemplo: 1500000)
- CP: el código postal del inmueble (ejemplo: 06700)
- Plazo: el plazo del crédito en años, las opciones son 10, 15 o 20 años
`)
	}
	b.WriteString("\nEstos son los datos que ya tienes, no los pidas de nuevo y JAMAS los borres:\n")
	writeKnownFields(&b, category, rec)
	b.WriteString(`
Responde con un JSON que contenga todos los datos conocidos hasta ahora y una clave "Mensaje" con tu siguiente mensaje para el cliente, pidiendo unicamente los datos que falten, sin abrumarlo. `)
	b.WriteString(jsonOnly)
	b.WriteString("\nSi en tu retorno cuentas con todos los datos, en el mensaje final informale al cliente que se le entregara en breve un documento pdf con su cotización, que espere un momento.")
	return b.String()
}

func writeKnownFields(b *strings.Builder, category string, rec models.FlowRecord) {
	var pairs [][2]string
	if category == models.QuoteAuto {
		pairs = [][2]string{
			{"Marca", rec.Field("brand")},
			{"Modelo", rec.Field("model")},
			{"Año", rec.Field("year")},
			{"Precio", rec.Field("price")},
			{"Plazo", rec.Field("term")},
		}
	} else {
		pairs = [][2]string{
			{"Precio", rec.Field("price")},
			{"CP", rec.Field("postal_code")},
			{"Plazo", rec.Field("term")},
		}
	}
	for _, p := range pairs {
		if p[1] != "" {
			fmt.Fprintf(b, "- %s: %s\n", p[0], p[1])
		}
	}
}

// newAccountContext drives the account opening slot filling. When the record
// is complete but unsigned, the conversation shifts to reminding the customer
// about the signature form.
func newAccountContext(rec models.FlowRecord, signingStage bool) string {
	if signingStage {
		return `El cliente ya proporcionó todos los datos para abrir su cuenta y solo falta que firme el formulario del link que se le envió. Recuérdale amablemente que debe firmar para completar la apertura y resuelve cualquier duda que tenga.
Responde con un JSON con la clave "Mensaje" con tu mensaje para el cliente. ` + jsonOnly
	}
	var b strings.Builder
	b.WriteString(`Estás ayudando a un cliente a abrir una cuenta en Banorte. Necesitas recolectar los siguientes datos:
- Nuevo: si ya tiene alguna cuenta con Banorte (ejemplo: si, no)
- Tipo: el tipo de cuenta que desea, las opciones son nómina, ahorro o inversión
- Profesion: la profesión u ocupación del cliente
- Transacciones: el número aproximado de transacciones al mes (ejemplo: 20)
- Monto: el monto mensual aproximado que manejará en pesos (ejemplo: 15000)
- PEP: si el cliente o un familiar desempeña o ha desempeñado un cargo público (ejemplo: si, no)

MUY IMPORTANTE JAMAS BORRES INFORMACIón QUE YA TENGAS.
Estos son los datos que ya tienes:
`)
	for _, p := range [][2]string{
		{"Nuevo", rec.Field("is_new")},
		{"Tipo", rec.Field("account_type")},
		{"Profesion", rec.Field("profession")},
		{"Transacciones", rec.Field("transactions")},
		{"Monto", rec.Field("monthly_amount")},
		{"PEP", rec.Field("pep")},
	} {
		if p[1] != "" {
			fmt.Fprintf(&b, "- %s: %s\n", p[0], p[1])
		}
	}
	b.WriteString(`
Responde con un JSON que contenga todos los datos conocidos hasta ahora y una clave "Mensaje" con tu siguiente mensaje para el cliente, pidiendo unicamente los datos que falten, sin abrumarlo. `)
	b.WriteString(jsonOnly)
	return b.String()
}

// additionalCardContext drives the additional card request.
func additionalCardContext(rec models.FlowRecord) string {
	var b strings.Builder
	b.WriteString(`Estás ayudando a un cliente a solicitar una tarjeta adicional vinculada a su cuenta. Necesitas recolectar los siguientes datos:
- Name: el nombre completo de la persona que usará la tarjeta adicional
- Relation: el parentesco o relación con el titular (ejemplo: esposa, hijo)
- Limite: el límite de crédito mensual para la tarjeta en pesos (ejemplo: 5000)
- RFC: el RFC de la persona que usará la tarjeta

Estos son los datos que ya tienes, no los pidas de nuevo:
`)
	for _, p := range [][2]string{
		{"Name", rec.Field("holder_name")},
		{"Relation", rec.Field("relation")},
		{"Limite", rec.Field("credit_limit")},
		{"RFC", rec.Field("tax_id")},
	} {
		if p[1] != "" {
			fmt.Fprintf(&b, "- %s: %s\n", p[0], p[1])
		}
	}
	b.WriteString(`
Responde con un JSON que contenga todos los datos conocidos hasta ahora y una clave "Mensaje" con tu siguiente mensaje para el cliente. `)
	b.WriteString(jsonOnly)
	b.WriteString("\nSi ya cuentas con todos los datos, en el mensaje final informale al cliente que su tarjeta adicional estará lista en 10 días hábiles en la sucursal 556 Prado Norte.")
	return b.String()
}

// blockedCardContext drives the lost card report.
func blockedCardContext(rec models.FlowRecord) string {
	var b strings.Builder
	b.WriteString(`Estás ayudando a un cliente a reportar una tarjeta extraviada o robada. Necesitas recolectar los siguientes datos:
- Number: los últimos 4 dígitos de la tarjeta
- Tipo: el tipo de tarjeta, las opciones son débito o crédito oro

Estos son los datos que ya tienes, no los pidas de nuevo:
`)
	for _, p := range [][2]string{
		{"Number", rec.Field("card_number")},
		{"Tipo", rec.Field("card_type")},
	} {
		if p[1] != "" {
			fmt.Fprintf(&b, "- %s: %s\n", p[0], p[1])
		}
	}
	b.WriteString(`
Responde con un JSON que contenga todos los datos conocidos hasta ahora y una clave "Mensaje" con tu siguiente mensaje para el cliente. `)
	b.WriteString(jsonOnly)
	b.WriteString("\nSi ya cuentas con todos los datos, en el mensaje final confirma al cliente que su tarjeta quedó bloqueada de inmediato.")
	return b.String()
}

// advanceContext validates each step of the payroll advance.
func advanceContext(stage int) string {
	criteria := map[int]string{
		1: "El cliente debe indicar la cantidad que desea de adelanto (un monto en pesos).",
		2: "El cliente debe indicar un plazo entre 2 y 12 meses.",
		3: "El cliente debe confirmar que desea continuar con el adelanto.",
		4: "El cliente debe confirmar que firmará el documento.",
	}
	return fmt.Sprintf(`Estás ayudando a un cliente con un adelanto de nómina. Te encuentras en el paso %d.
%s
Si la respuesta del cliente es válida para este paso, responde UNICAMENTE con el JSON {"advance":"true"}. %s
Si la respuesta no es válida o el cliente tiene dudas, responde con un mensaje conversacional resolviendo la duda y pidiendo de nuevo el dato del paso.`, stage, criteria[stage], jsonOnly)
}

// utilityContext validates each step of the electricity bill payment.
func utilityContext(stage int) string {
	criteria := map[int]string{
		1: "El cliente debe confirmar que desea pagar el servicio CFE 278376187231.",
		2: "El cliente debe indicar el monto que desea pagar.",
		3: "El cliente debe confirmar que el pago se aplique a su cuenta ****4242.",
		4: "El cliente debe ingresar su clave Banorte (acepta cualquier clave).",
		5: "El pago ya fue aplicado.",
	}
	return fmt.Sprintf(`Estás ayudando a un cliente a pagar su recibo de luz. Te encuentras en el paso %d.
%s
Si la respuesta del cliente es válida para este paso, responde UNICAMENTE con el JSON {"advance":"true"}. %s
Si la respuesta no es válida o el cliente tiene dudas, responde con un mensaje conversacional resolviendo la duda y pidiendo de nuevo el dato del paso.`, stage, criteria[stage], jsonOnly)
}

// hoursContext answers branch schedule questions.
func hoursContext() string {
	return `El cliente pregunta por horarios o ubicaciones de sucursales. Todas las sucursales abren de 7AM a 7PM de lunes a viernes. El teléfono de atención es 5557773333 y las oficinas centrales están en Paseo de Las Lomas.
Responde con un JSON con el formato {"location": "<sucursal o zona mencionada>", "message": "<mensaje para el cliente con la información>"}. ` + jsonOnly
}

// movementsContext introduces the demo account movement summary.
func movementsContext() string {
	return `El cliente pide un resumen de los movimientos de su cuenta. Después de tu mensaje se le enviará la lista de movimientos, así que tu mensaje solo debe introducirla brevemente.
Responde con un JSON con el formato {"finalMessage": "<mensaje breve introduciendo el resumen>"}. ` + jsonOnly
}

// deactivateContext picks which additional card to deactivate.
func deactivateContext() string {
	return `El cliente desea desactivar una tarjeta adicional. Tiene dos tarjetas adicionales activas; inventa las terminaciones de 4 dígitos de ambas y, si el cliente no ha indicado cuál, pregúntale cuál desea desactivar mencionando las terminaciones.
Cuando el cliente indique la tarjeta, responde con un JSON con el formato {"number": "<terminacion de 4 digitos>"}. ` + jsonOnly + `
Mientras no la indique, responde con un mensaje conversacional.`
}

// promosContext answers follow-up questions about the monthly promotions.
func promosContext() string {
	return `El cliente pregunta por las promociones del mes de Banorte:
- Hasta 24 meses sin intereses en compras del Buen Fin, válido hasta el 10 de diciembre
- 10% de descuento en restaurantes seleccionados
- 10% de descuento en viajes internacionales

Responde sus dudas de forma conversacional. Si pide más detalles de una promoción, inventa un enlace del estilo Banorte.com/promocionXYZ para consultarla.`
}

// docPromptContext asks the model to request the next missing document.
func docPromptContext(usage, requirement string) string {
	return usage + requirement + " Considera que si te llega un mensaje en blanco, es muy posiblemente un documento. Redacta un mensaje breve y amable pidiendo ese documento al cliente."
}

// Document requirement fragments, in checking order.
const (
	docUsageQuote = "Estas ayudando a un cliente a realizar una cotización"

	reqID      = ", necesitamos que nos envíe su identificación oficial (INE)"
	reqAddress = ", necesitamos que nos envíe un comprobante de domicilio (recibo de luz CFE)"
	reqIncome  = ", necesitamos que nos envíe un comprobante de ingresos para continuar con el proceso (estado de cuenta bancario)"
	reqPhoto   = ", necesitamos que nos envíe una foto para validar la identidad del usuario (foto de la cara)"
)
