package prompt

import (
	"fmt"
	"strings"
)

// ScoutPromptVars holds what acquisition knows about a URL before asking the
// search-grounded model to find the post.
type ScoutPromptVars struct {
	URL             string
	Platform        string
	Hint            string
	PageTitle       string
	PageDescription string
	PageAuthor      string
	Sentinel        string
}

// BuildScoutPrompt builds the single search-grounded acquisition request.
func BuildScoutPrompt(vars ScoutPromptVars) string {
	var clues strings.Builder
	if vars.Hint != "" {
		fmt.Fprintf(&clues, "- Pista extraída de la URL: %q\n", vars.Hint)
	}
	if vars.PageTitle != "" {
		fmt.Fprintf(&clues, "- Título de la página: %q\n", vars.PageTitle)
	}
	if vars.PageDescription != "" {
		fmt.Fprintf(&clues, "- Descripción de la página: %q\n", vars.PageDescription)
	}
	if vars.PageAuthor != "" {
		fmt.Fprintf(&clues, "- Autor declarado en la página: %q\n", vars.PageAuthor)
	}
	if clues.Len() == 0 {
		clues.WriteString("- Sin pistas adicionales.\n")
	}

	return fmt.Sprintf(`Usa la búsqueda web para localizar esta publicación de %s:
%s

Pistas disponibles:
%s
Tarea: transcribe el autor (usuario o nombre visible), el texto completo de la publicación y describe brevemente cualquier imagen o video que la acompañe.

Reglas estrictas:
- No inventes ni completes contenido. Transcribe solo lo que encuentres en fuentes reales.
- Si no puedes encontrar la publicación exacta, responde únicamente: %s`,
		vars.Platform, vars.URL, clues.String(), vars.Sentinel)
}

// VisionPrompt asks the model to read a screenshot of a social post.
const VisionPrompt = `Esta imagen es una captura de pantalla de una publicación en redes sociales.
Extrae:
- author: el nombre de usuario o nombre visible del autor
- content: el texto completo de la publicación, tal como aparece
- mediaDescription: descripción breve de imágenes, videos o elementos gráficos incluidos
- platform: la red social (por ejemplo "X (Twitter)", "Facebook", "Instagram", "TikTok")
Si algún campo no es legible, déjalo vacío. No inventes texto.`
