package atolldev

import (
	"fmt"
	"html/template"
)

const defaultRefreshPort = 10_000

// RefreshScript returns the browser refresh client as an inline script tag.
func RefreshScript(port int) template.HTML {
	if port == 0 {
		port = defaultRefreshPort
	}
	return template.HTML(fmt.Sprintf("<script>%s</script>", RefreshScriptInner(port)))
}

// RefreshScriptInner returns the raw JavaScript for the refresh client.
// Exported so the dev server can also serve it via an HTTP endpoint.
func RefreshScriptInner(port int) string {
	return fmt.Sprintf(refreshScriptTemplate, port)
}

const refreshScriptTemplate = `
function getRebuildOverlay() {
	return document.getElementById("atoll-refreshscript-rebuilding");
}
const scrollYKey = "__atoll_internal__devScrollY";
const scrollY = sessionStorage.getItem(scrollYKey);
if (scrollY) {
	setTimeout(() => {
		sessionStorage.removeItem(scrollYKey);
		console.info("Atoll: Restoring previous scroll position");
		window.scrollTo({ top: scrollY, behavior: "smooth" })
	}, 150);
}
const ws = new WebSocket("ws://localhost:%d/events");
ws.onopen = () => {
	ws.send("ping");
};
ws.onmessage = (e) => {
	const { changeType, styleURL } = JSON.parse(e.data);
	if (changeType == "rebuilding") {
		console.log("Atoll: Rebuilding...");
		if (!getRebuildOverlay()) {
			const el = document.createElement("div");
			el.innerHTML = "Rebuilding...";
			el.id = "atoll-refreshscript-rebuilding";
			el.style.display = "flex";
			el.style.position = "fixed";
			el.style.inset = "0";
			el.style.width = "100%%";
			el.style.backgroundColor = "#333a";
			el.style.color = "white";
			el.style.textAlign = "center";
			el.style.padding = "10px";
			el.style.zIndex = "1000";
			el.style.fontFamily = "monospace";
			el.style.fontSize = "7vw";
			el.style.fontWeight = "bold";
			el.style.textShadow = "2px 2px 2px #000";
			el.style.justifyContent = "center";
			el.style.alignItems = "center";
			el.style.opacity = "0";
			el.style.transition = "opacity 0.05s";
			document.body.appendChild(el);
			setTimeout(() => {
				el.style.opacity = "1";
			}, 10);
		}
	}
	if (changeType == "reload") {
		const scrollY = window.scrollY;
		if (scrollY > 0) {
			sessionStorage.setItem(scrollYKey, scrollY);
		}
		window.location.reload();
	}
	if (changeType == "css-update") {
		fetch(window.location.pathname + "?__atoll_styles=1")
			.then((res) => res.text())
			.then((markup) => {
				const doc = new DOMParser().parseFromString(markup, "text/html");
				for (const next of doc.querySelectorAll("style[data-atoll-dev-id]")) {
					const id = next.getAttribute("data-atoll-dev-id");
					if (styleURL && id !== styleURL) continue;
					const current = document.querySelector(
						'style[data-atoll-dev-id="' + CSS.escape(id) + '"]',
					);
					if (current) {
						current.replaceWith(next);
					} else {
						document.head.appendChild(next);
					}
				}
			});
	}
};
ws.onclose = () => {
	console.log("Atoll: WebSocket closed");
	window.location.reload();
};
ws.onerror = (e) => {
	console.log("Atoll: WebSocket error", e);
	ws.close();
	window.location.reload();
};
window.addEventListener("beforeunload", () => {
	ws.onclose = () => {};
	ws.close();
});
`
