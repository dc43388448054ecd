package reload

import "bytes"

// ScriptPath is where the dev server serves ClientScript.
const ScriptPath = "/__devd/client.js"

// ScriptTag loads ClientScript from ScriptPath.
const ScriptTag = `<script src="` + ScriptPath + `"></script>`

// InjectScript inserts ScriptTag before the closing body tag, falling back to
// the closing html tag and then to the end of the document. Pages that already
// carry the tag are returned unchanged.
func InjectScript(html []byte) []byte {
	if bytes.Contains(html, []byte(ScriptTag)) {
		return html
	}
	for _, marker := range [][]byte{[]byte("</body>"), []byte("</html>")} {
		if idx := bytes.LastIndex(html, marker); idx != -1 {
			out := make([]byte, 0, len(html)+len(ScriptTag))
			out = append(out, html[:idx]...)
			out = append(out, ScriptTag...)
			return append(out, html[idx:]...)
		}
	}
	out := make([]byte, 0, len(html)+len(ScriptTag))
	out = append(out, html...)
	return append(out, ScriptTag...)
}

// ClientScript connects to /ws and applies hub messages. Stylesheet-only
// updates swap link hrefs in place; everything else reloads the page. Failed
// builds render their diagnostics in an overlay that the next successful
// build removes. Lost connections are retried with capped backoff.
const ClientScript = `(function () {
  'use strict';

  var OVERLAY_ID = '__devd_overlay';
  var delay = 500;
  var MAX_DELAY = 15000;

  var handlers = {
    reload: function (data) {
      var files = (data && data.files) || [];
      if (data && data.action === 'update' && files.length && files.every(isCSS)) {
        refreshStyles();
        return;
      }
      location.reload();
    },
    build: function () {
      hideOverlay();
    },
    error: function (data) {
      showOverlay(data || {});
    }
  };

  function isCSS(file) {
    return /\.css$/i.test(file);
  }

  function refreshStyles() {
    var stamp = String(Date.now());
    Array.prototype.forEach.call(document.querySelectorAll('link[rel="stylesheet"]'), function (link) {
      var url = new URL(link.href, location.href);
      url.searchParams.set('__devd', stamp);
      link.href = url.toString();
    });
  }

  function where(d) {
    if (!d.file) return '';
    var loc = d.file;
    if (d.line) loc += ':' + d.line;
    if (d.column) loc += ':' + d.column;
    return loc + '  ';
  }

  function showOverlay(data) {
    hideOverlay();
    var root = document.createElement('div');
    root.id = OVERLAY_ID;
    root.setAttribute('style', 'position:fixed;inset:0;z-index:2147483647;overflow:auto;' +
      'background:rgba(17,17,17,0.94);color:#eee;font:13px/1.5 ui-monospace,monospace;padding:24px;');

    var head = document.createElement('div');
    head.setAttribute('style', 'color:#f87171;font-size:16px;margin-bottom:16px;');
    head.textContent = data.message || 'Build failed';
    root.appendChild(head);

    (data.errors || []).forEach(function (d) {
      var row = document.createElement('pre');
      row.setAttribute('style', 'margin:0 0 8px;white-space:pre-wrap;');
      row.textContent = where(d) + (d.code ? '[' + d.code + '] ' : '') + d.message;
      root.appendChild(row);
    });

    root.addEventListener('click', hideOverlay);
    (document.body || document.documentElement).appendChild(root);
  }

  function hideOverlay() {
    var el = document.getElementById(OVERLAY_ID);
    if (el) el.parentNode.removeChild(el);
  }

  function connect() {
    var scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
    var ws = new WebSocket(scheme + location.host + '/ws');

    ws.addEventListener('open', function () {
      delay = 500;
    });
    ws.addEventListener('message', function (ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (_) { return; }
      var fn = handlers[msg.type];
      if (fn) fn(msg.data);
    });
    ws.addEventListener('close', function () {
      setTimeout(connect, delay);
      delay = Math.min(delay * 2, MAX_DELAY);
    });
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', connect);
  } else {
    connect();
  }
})();
`
