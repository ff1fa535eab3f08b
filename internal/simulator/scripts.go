package simulator

import "github.com/kapu/campaign-ops-go/internal/domain"

var defenseScript = []string{
	"Inicializando protocolo de defensa reputacional...",
	"Conectando con el nodo de escucha social...",
	"Clasificando sentimiento e intención del mensaje...",
	"Evaluando nivel de riesgo legal y reputacional...",
	"Redactando respuestas en tres tonos...",
	"Verificando longitud y coherencia con la voz del candidato...",
}

var targetingScript = []string{
	"Cargando cartografía electoral de la región...",
	"Cruzando variables demográficas y de participación...",
	"Agrupando votantes por afinidad...",
	"Estimando tamaño de cada segmento...",
	"Priorizando segmentos por potencial de conversión...",
	"Definiendo estrategia recomendada por segmento...",
}

var networkScript = []string{
	"Leyendo archivo de métricas...",
	"Normalizando columnas y valores faltantes...",
	"Comparando desempeño entre plataformas...",
	"Detectando tendencias de conversación...",
	"Generando recomendaciones tácticas...",
}

var translationScript = []string{
	"Cargando perfil lingüístico del candidato...",
	"Analizando modismos y registro del mensaje...",
	"Adaptando el mensaje al público destino...",
	"Revisando fidelidad del tono...",
}

var profileScript = []string{
	"Actualizando perfil del candidato...",
}

// researchSteps are spliced in when deep research is on.
var researchSteps = []string{
	"INVESTIGACIÓN PROFUNDA: consultando fuentes abiertas recientes...",
	"Contrastando noticias locales y registros públicos...",
	"Validando hallazgos con fuentes independientes...",
}

// fillerLines keep the console alive once the script is exhausted.
var fillerLines = []string{
	"Procesando respuesta del modelo...",
	"Esperando confirmación del servicio generativo...",
	"Optimizando resultados...",
	"Sincronizando con el centro de mando...",
	"Revisando consistencia del análisis...",
}

// Script returns the ordered log steps for mode. With deep research the
// research steps follow the first two base steps.
func Script(mode domain.Mode, deepResearch bool, spliceAt int) []string {
	var base []string
	switch mode {
	case domain.ModeDefenseResponse:
		base = defenseScript
	case domain.ModeTargeting:
		base = targetingScript
	case domain.ModeNetworkAnalysis:
		base = networkScript
	case domain.ModeTranslator:
		base = translationScript
	default:
		base = profileScript
	}

	if !deepResearch {
		out := make([]string, len(base))
		copy(out, base)
		return out
	}

	if spliceAt > len(base) {
		spliceAt = len(base)
	}
	if spliceAt < 0 {
		spliceAt = 0
	}
	out := make([]string, 0, len(base)+len(researchSteps))
	out = append(out, base[:spliceAt]...)
	out = append(out, researchSteps...)
	out = append(out, base[spliceAt:]...)
	return out
}
