package render

// pdfjsVersion pins the CDN build used for in-browser PDF rasterization.
const pdfjsVersion = "3.11.174"

// jsRasterizePDF loads pdf.js from the CDN inside the page, fetches the PDF,
// and draws every page to a canvas at the requested scale. Resolves to an
// array of {pageIndex, width, height, dataUrl} objects in page order.
const jsRasterizePDF = `(pdfUrl, scale) => new Promise(async (resolve, reject) => {
	try {
		const script = document.createElement('script');
		script.src = 'https://cdnjs.cloudflare.com/ajax/libs/pdf.js/` + pdfjsVersion + `/pdf.min.js';
		await new Promise((ok, fail) => {
			script.onload = ok;
			script.onerror = () => fail(new Error('failed to load pdf.js'));
			document.head.appendChild(script);
		});
		pdfjsLib.GlobalWorkerOptions.workerSrc =
			'https://cdnjs.cloudflare.com/ajax/libs/pdf.js/` + pdfjsVersion + `/pdf.worker.min.js';

		const doc = await pdfjsLib.getDocument({ url: pdfUrl }).promise;
		const pages = [];
		for (let i = 1; i <= doc.numPages; i++) {
			const page = await doc.getPage(i);
			const viewport = page.getViewport({ scale: scale });
			const canvas = document.createElement('canvas');
			canvas.width = Math.ceil(viewport.width);
			canvas.height = Math.ceil(viewport.height);
			await page.render({ canvasContext: canvas.getContext('2d'), viewport: viewport }).promise;
			pages.push({
				pageIndex: i - 1,
				width: canvas.width,
				height: canvas.height,
				dataUrl: canvas.toDataURL('image/png'),
			});
		}
		resolve(pages);
	} catch (err) {
		reject(err instanceof Error ? err : new Error(String(err)));
	}
})`
